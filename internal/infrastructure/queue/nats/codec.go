package nats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kirillkom/steam-game-recommender/internal/core/domain"
)

type replyEnvelope struct {
	Result *domain.RecommendationResult `json:"result,omitempty"`
	Error  string                       `json:"error,omitempty"`
}

func encodeRequest(req domain.RecommendRequest) ([]byte, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode recommend request", errors.New("query is empty"))
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal recommend request: %w", err)
	}
	return payload, nil
}

func decodeRequest(data []byte) (domain.RecommendRequest, error) {
	var req domain.RecommendRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return req, domain.WrapError(domain.ErrInvalidInput, "decode recommend request", err)
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, domain.WrapError(domain.ErrInvalidInput, "decode recommend request", errors.New("query is empty"))
	}
	return req, nil
}

func encodeReply(result domain.RecommendationResult, err error) []byte {
	envelope := replyEnvelope{Result: &result}
	if err != nil {
		envelope = replyEnvelope{Error: err.Error()}
	}
	payload, marshalErr := json.Marshal(envelope)
	if marshalErr != nil {
		payload, _ = json.Marshal(replyEnvelope{Error: marshalErr.Error()})
	}
	return payload
}

func decodeReply(data []byte) (domain.RecommendationResult, error) {
	var envelope replyEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return domain.RecommendationResult{}, domain.WrapError(domain.ErrMalformedResponse, "decode recommend reply", err)
	}
	if envelope.Error != "" {
		return domain.RecommendationResult{}, domain.WrapError(domain.ErrTemporary, "remote recommend", errors.New(envelope.Error))
	}
	if envelope.Result == nil {
		return domain.RecommendationResult{}, domain.WrapError(domain.ErrMalformedResponse, "decode recommend reply", errors.New("reply has neither result nor error"))
	}
	return *envelope.Result, nil
}
