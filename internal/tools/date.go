package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tj-assistant/ml-backend/internal/llm"
)

// GetCurrentDate reports the current UTC date, time and weekday. The
// clock is injectable for tests.
type GetCurrentDate struct {
	now func() time.Time
}

func NewGetCurrentDate() *GetCurrentDate {
	return &GetCurrentDate{now: time.Now}
}

func (t *GetCurrentDate) Name() string {
	return "get_current_date"
}

func (t *GetCurrentDate) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: t.Name(),
		Description: "Получить текущую дату и время. " +
			"Используй этот инструмент когда: нужно знать текущую дату для расчёта сроков; " +
			"пользователь спрашивает о дедлайнах или сроках относительно сегодня; " +
			"нужно определить актуальность информации.",
		Parameters: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
		},
	}
}

func (t *GetCurrentDate) Invoke(ctx context.Context, args json.RawMessage) (string, error) {
	now := t.now().UTC()
	return fmt.Sprintf(
		"Текущая дата и время (UTC): %s. День недели: %s.",
		now.Format("02.01.2006 15:04"),
		now.Weekday(),
	), nil
}
