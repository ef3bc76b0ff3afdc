package tools

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type CurrentTimeInput struct {
	Timezone string `json:"timezone,omitempty" jsonschema_description:"IANA time zone name, e.g. Europe/Paris (default UTC)."`
}

var CurrentTimeDefinition = ToolDefinition{
	Name:        "get_current_time",
	Description: "Return the current date and time in the requested time zone.",
	InputSchema: CurrentTimeInputSchema,
	Function:    GetCurrentTime,
}

var CurrentTimeInputSchema = GenerateSchema[CurrentTimeInput]()

func GetCurrentTime(input json.RawMessage) (string, error) {
	var in CurrentTimeInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	name := strings.TrimSpace(in.Timezone)
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", fmt.Errorf("unknown time zone %q", name)
	}
	return time.Now().In(loc).Format(time.RFC3339), nil
}
