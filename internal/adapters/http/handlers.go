package httpadapter

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/collision-fault-assistant/internal/core/domain"
	"github.com/kirillkom/collision-fault-assistant/internal/core/ports"
)

type initAnalysisRequest struct {
	RoadType string `json:"road_type"`
}

type reEvaluateRequest struct {
	UserID     string `json:"user_id"`
	AnalysisID string `json:"analysis_id"`
	UserAnswer string `json:"user_answer"`
}

type followupRequest struct {
	UserID     string `json:"user_id"`
	AnalysisID string `json:"analysis_id"`
	Message    string `json:"message"`
}

func (rt *Router) initAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "init_analysis"
	var req initAnalysisRequest
	if err := rt.readJSON(r, "/v1/analyses/init", &req); err != nil {
		rt.writeError(w, r, op, err)
		return
	}

	analysis, err := rt.svc.Initialize(r.Context(), req.RoadType)
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}
	rt.recordOperation(op, http.StatusCreated)
	writeJSON(w, http.StatusCreated, analysis)
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request) {
	const op = "get_analysis"
	analysisID, err := pathParam(r, "analysis_id")
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}

	analysis, err := rt.reader.GetAnalysis(r.Context(), analysisID)
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}
	rt.recordOperation(op, http.StatusOK)
	writeJSON(w, http.StatusOK, analysis)
}

func (rt *Router) listQueries(w http.ResponseWriter, r *http.Request) {
	const op = "list_queries"
	analysisID, err := pathParam(r, "analysis_id")
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}
	var userID string
	if err := runtime.BindQueryParameter("form", true, true, "user_id", r.URL.Query(), &userID); err != nil {
		rt.writeError(w, r, op, domain.WrapError(domain.ErrInvalidInput, op, err))
		return
	}

	queries, err := rt.reader.ListQueries(r.Context(), userID, analysisID)
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}
	rt.recordOperation(op, http.StatusOK)
	writeJSON(w, http.StatusOK, queries)
}

func (rt *Router) submitVideo(w http.ResponseWriter, r *http.Request) {
	const op = "submit_video"
	if rt.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.opts.MaxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxBytes *http.MaxBytesError
		if !errors.As(err, &maxBytes) {
			err = domain.WrapError(domain.ErrInvalidInput, op, fmt.Errorf("parse multipart form: %w", err))
		}
		rt.writeError(w, r, op, err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		rt.writeError(w, r, op, domain.WrapError(domain.ErrInvalidInput, op, errors.New("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	submission := ports.VideoSubmission{
		UserID:     strings.TrimSpace(r.FormValue("user_id")),
		AnalysisID: strings.TrimSpace(r.FormValue("analysis_id")),
		Filename:   header.Filename,
		MimeType:   header.Header.Get("Content-Type"),
		Body:       file,
	}
	video, err := rt.svc.SubmitVideo(r.Context(), submission)
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}
	rt.recordOperation(op, http.StatusCreated)
	writeJSON(w, http.StatusCreated, video)
}

func (rt *Router) getVideo(w http.ResponseWriter, r *http.Request) {
	const op = "get_video"
	videoID, err := pathParam(r, "video_id")
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}

	video, err := rt.reader.GetVideo(r.Context(), videoID)
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}
	rt.recordOperation(op, http.StatusOK)
	writeJSON(w, http.StatusOK, video)
}

func (rt *Router) reEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "re_evaluate"
	var req reEvaluateRequest
	if err := rt.readJSON(r, "/v1/analyses/re-evaluate", &req); err != nil {
		rt.writeError(w, r, op, err)
		return
	}

	result, err := rt.svc.ReEvaluate(r.Context(), req.UserID, req.AnalysisID, req.UserAnswer)
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}
	rt.recordOperation(op, http.StatusOK)
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) askFollowup(w http.ResponseWriter, r *http.Request) {
	const op = "ask_followup"
	var req followupRequest
	if err := rt.readJSON(r, "/v1/queries/followup", &req); err != nil {
		rt.writeError(w, r, op, err)
		return
	}

	query, err := rt.svc.AskFollowup(r.Context(), req.UserID, req.AnalysisID, req.Message)
	if err != nil {
		rt.writeError(w, r, op, err)
		return
	}
	rt.recordOperation(op, http.StatusCreated)
	writeJSON(w, http.StatusCreated, query)
}

func (rt *Router) readJSON(r *http.Request, path string, dest any) error {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxJSONBodyBytes+1))
	if err != nil {
		return domain.WrapError(domain.ErrInvalidInput, "read request body", err)
	}
	if len(payload) > maxJSONBodyBytes {
		return domain.WrapError(domain.ErrInvalidInput, "read request body", fmt.Errorf("body exceeds %d bytes", maxJSONBodyBytes))
	}
	return rt.validator.decode(path, payload, dest)
}

func pathParam(r *http.Request, name string) (string, error) {
	var value string
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &value, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Explode:       false,
		Required:      true,
	})
	if err != nil {
		return "", domain.WrapError(domain.ErrInvalidInput, "bind "+name, err)
	}
	return value, nil
}
