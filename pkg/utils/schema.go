// Package utils holds small helpers shared by the CLI and API layers.
package utils

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/rxtech-lab/argo-signal/internal/types"
	"github.com/rxtech-lab/argo-signal/pkg/errors"
)

// ToJSONSchema converts a struct to a JSON schema string.
func ToJSONSchema[T any](t T) (string, error) {
	r := new(jsonschema.Reflector)
	r.DoNotReference = true
	schema := r.Reflect(t)

	jsonSchemaBytes, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}

	return string(jsonSchemaBytes), nil
}

// StrategyParamsSchema returns the JSON schema of the parameter payload for
// the given strategy type.
func StrategyParamsSchema(strategyType types.StrategyType) (string, error) {
	switch strategyType {
	case types.StrategyTypeMACDCrossover:
		//nolint:exhaustruct // empty struct is intentional for schema generation
		return ToJSONSchema(types.MACDParams{})
	case types.StrategyTypeMACrossover:
		//nolint:exhaustruct // empty struct is intentional for schema generation
		return ToJSONSchema(types.MAParams{})
	default:
		return "", errors.Newf(errors.ErrCodeInvalidStrategy, "unsupported strategy type: %s", strategyType)
	}
}
