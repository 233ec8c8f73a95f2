package usecase

import "github.com/kirillkom/collision-fault-assistant/internal/core/domain"

// AssembleConversation flattens an ordered query thread into user/assistant turns.
func AssembleConversation(queries []domain.Query) []domain.ConversationTurn {
	turns := make([]domain.ConversationTurn, 0, len(queries)*2)
	for _, q := range queries {
		turns = append(turns,
			domain.ConversationTurn{Role: domain.RoleUser, Content: q.Message},
			domain.ConversationTurn{Role: domain.RoleAssistant, Content: q.Response},
		)
	}
	return turns
}
