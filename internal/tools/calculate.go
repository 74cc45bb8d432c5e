package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tj-assistant/ml-backend/internal/llm"
)

// Calculate evaluates arithmetic expressions with a restricted,
// hand-rolled parser — no interpreter is ever invoked, so the model
// cannot execute arbitrary code through this tool. Evaluation errors
// (bad syntax, division by zero) come back as text, not as failures, so
// the agent loop can show them to the model.
type Calculate struct{}

func NewCalculate() *Calculate {
	return &Calculate{}
}

func (t *Calculate) Name() string {
	return "calculate"
}

func (t *Calculate) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: t.Name(),
		Description: "Вычислить математическое выражение и вернуть результат. " +
			"Используй этот инструмент когда: нужно посчитать проценты, налоги, доходность; " +
			"нужно сложить, вычесть, умножить или разделить числа; " +
			"пользователь просит рассчитать что-то конкретное. " +
			"Поддерживаемые операции: +, -, *, /, //, %, **. " +
			"Примеры: \"100000 * 0.13\", \"50000 + 50000 * 0.1\", \"2 ** 10\".",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"expression": map[string]interface{}{
					"type":        "string",
					"description": "Математическое выражение, например \"100000 * 0.13\".",
				},
			},
			"required": []string{"expression"},
		},
	}
}

func (t *Calculate) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	var params struct {
		Expression string `json:"expression"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	result, err := evalExpression(params.Expression)
	if err != nil {
		return fmt.Sprintf("Ошибка вычисления '%s': %v", params.Expression, err), nil
	}

	return fmt.Sprintf("Результат: %s = %s", params.Expression, formatResult(result)), nil
}
