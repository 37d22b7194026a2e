package crm

import (
	"fmt"
	"strings"

	"github.com/minicrm/backend/internal/domain/crm"
)

// DefaultObjective is used when a suggestion request names no objective
const DefaultObjective = "increase sales"

// SuggestMessages drafts three message templates for an objective. The
// drafts keep the {name} placeholder for per-customer rendering.
func SuggestMessages(req SuggestMessagesRequest) SuggestMessagesResponse {
	objective := strings.TrimSpace(req.Objective)
	if objective == "" {
		objective = DefaultObjective
	}
	audience := crm.AudienceType(req.AudienceType)
	if audience == "" {
		audience = crm.AudienceAllCustomers
	}
	lower := strings.ToLower(objective)

	messages := []string{
		fmt.Sprintf("Hi {name}, achieve %s! Special offer inside.", objective),
		fmt.Sprintf("{name}, ready to %s? Exclusive deal for you!", lower),
		fmt.Sprintf("Hey {name}! Your journey to %s starts here!", lower),
	}
	switch audience {
	case crm.AudienceInactive:
		messages[2] = fmt.Sprintf("We miss you, {name}! Come back and %s with us.", lower)
	case crm.AudienceNew:
		messages[2] = fmt.Sprintf("Welcome aboard, {name}! Let's %s together.", lower)
	case crm.AudienceHighValue:
		messages[2] = fmt.Sprintf("{name}, as one of our best customers, here is early access to %s.", lower)
	}

	return SuggestMessagesResponse{
		Objective: objective,
		Audience:  string(audience),
		Messages:  messages,
	}
}
