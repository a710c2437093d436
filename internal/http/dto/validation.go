package dto

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cesargomez89/segmentcraft/internal/constants"
	"github.com/cesargomez89/segmentcraft/internal/domain"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) ToMap() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

var shipKeyRegex = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

func validateRequired(field string, value string) []ValidationError {
	if strings.TrimSpace(value) == "" {
		return []ValidationError{{Field: field, Message: "is required"}}
	}
	return nil
}

func validateShipKey(shipKey *string) []ValidationError {
	var errs []ValidationError
	if shipKey != nil && *shipKey != "" {
		if !shipKeyRegex.MatchString(*shipKey) {
			errs = append(errs, ValidationError{Field: "ship_key", Message: "may only contain letters, digits and underscores"})
		}
	}
	return errs
}

func validateChainType(chainType *string) []ValidationError {
	var errs []ValidationError
	if chainType != nil && *chainType != "" {
		switch domain.ChainType(*chainType) {
		case domain.ChainTypeProduction, domain.ChainTypePreview:
		default:
			errs = append(errs, ValidationError{Field: "type", Message: "must be 'Production' or 'Preview'"})
		}
	}
	return errs
}

func validateChainState(state *string) []ValidationError {
	var errs []ValidationError
	if state != nil && *state != "" {
		switch domain.ChainState(*state) {
		case domain.ChainStateDraft, domain.ChainStateReady, domain.ChainStateFabricate,
			domain.ChainStateComplete, domain.ChainStateFailed:
		default:
			errs = append(errs, ValidationError{Field: "state", Message: "unknown chain state"})
		}
	}
	return errs
}

func validateTimestamp(field string, value *string) []ValidationError {
	var errs []ValidationError
	if value != nil && *value != "" {
		if _, err := time.Parse(time.RFC3339, *value); err != nil {
			errs = append(errs, ValidationError{Field: field, Message: "invalid timestamp (expected RFC 3339)"})
		}
	}
	return errs
}

func validateStartStop(start, stop *string) []ValidationError {
	if start == nil || stop == nil || *start == "" || *stop == "" {
		return nil
	}
	s, err1 := time.Parse(time.RFC3339, *start)
	e, err2 := time.Parse(time.RFC3339, *stop)
	if err1 != nil || err2 != nil {
		return nil
	}
	if !e.After(s) {
		return []ValidationError{{Field: "stop_at", Message: "must be after start_at"}}
	}
	return nil
}

func validateMemes(memes []string) []ValidationError {
	if len(memes) == 0 {
		return []ValidationError{{Field: "memes", Message: "at least one meme is required"}}
	}
	for _, m := range memes {
		if strings.TrimSpace(m) == "" {
			return []ValidationError{{Field: "memes", Message: "memes may not be blank"}}
		}
	}
	return nil
}

// validateOffsetWindow caps the span of a window. Windows outside the chain
// are not an error; they read as empty.
func validateOffsetWindow(from, to int) []ValidationError {
	if to-from >= constants.MaxSegmentsPerPage {
		return []ValidationError{{Field: "to", Message: fmt.Sprintf("window may span at most %d segments", constants.MaxSegmentsPerPage)}}
	}
	return nil
}
