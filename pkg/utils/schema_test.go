package utils

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/rxtech-lab/argo-signal/internal/types"
)

type SchemaTestSuite struct {
	suite.Suite
}

func TestSchemaSuite(t *testing.T) {
	suite.Run(t, new(SchemaTestSuite))
}

func (suite *SchemaTestSuite) TestToJSONSchema() {
	schema, err := ToJSONSchema(types.MACDParams{})
	suite.Require().NoError(err)
	suite.NotEmpty(schema)

	var decoded map[string]any
	suite.Require().NoError(json.Unmarshal([]byte(schema), &decoded))
	suite.Contains(schema, "fast_period")
	suite.Contains(schema, "Fast Period")
}

func (suite *SchemaTestSuite) TestStrategyParamsSchema() {
	schema, err := StrategyParamsSchema(types.StrategyTypeMACrossover)
	suite.Require().NoError(err)
	suite.Contains(schema, "short_period")

	schema, err = StrategyParamsSchema(types.StrategyTypeMACDCrossover)
	suite.Require().NoError(err)
	suite.Contains(schema, "signal_period")

	_, err = StrategyParamsSchema(types.StrategyType("grid"))
	suite.Error(err)
}
