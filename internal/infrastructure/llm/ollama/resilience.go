package ollama

import (
	"github.com/kirillkom/steam-game-recommender/internal/infrastructure/resilience"
)

func classifyOllamaError(err error) resilience.ErrorClassification {
	return resilience.ClassifyHTTPError(err)
}

func wrapTemporaryIfNeeded(operation string, err error) error {
	return resilience.WrapTemporaryIfNeeded(operation, err)
}
