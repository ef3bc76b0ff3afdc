package tools

import (
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/tidwall/gjson"
)

type WeatherInput struct {
	City string `json:"city" jsonschema_description:"City to report conditions for."`
	Unit string `json:"unit,omitempty" jsonschema_description:"Temperature unit: celsius or fahrenheit (default celsius)."`
}

var WeatherDefinition = ToolDefinition{
	Name:        "get_weather",
	Description: "Report current conditions for a city.",
	InputSchema: WeatherInputSchema,
	Function:    GetWeather,
}

var WeatherInputSchema = GenerateSchema[WeatherInput]()

var conditions = []string{"clear", "partly cloudy", "overcast", "light rain", "windy"}

// GetWeather reads its arguments with gjson so extra fields sent by the
// model are tolerated rather than rejected. Conditions are synthesized
// deterministically from the city name; this is a stand-in data source.
func GetWeather(input json.RawMessage) (string, error) {
	if !gjson.ValidBytes(input) {
		return "", fmt.Errorf("invalid arguments payload")
	}
	city := strings.TrimSpace(gjson.GetBytes(input, "city").String())
	if city == "" {
		return "", fmt.Errorf("city must not be empty")
	}
	unit := strings.ToLower(strings.TrimSpace(gjson.GetBytes(input, "unit").String()))
	switch unit {
	case "", "celsius":
		unit = "celsius"
	case "fahrenheit":
	default:
		return "", fmt.Errorf("unknown unit %q", unit)
	}

	h := fnv.New32a()
	h.Write([]byte(strings.ToLower(city)))
	sum := h.Sum32()
	tempC := int(sum%25) + 2 // 2..26 °C
	cond := conditions[int(sum/25)%len(conditions)]

	if unit == "fahrenheit" {
		return fmt.Sprintf("%s: %d°F, %s", city, tempC*9/5+32, cond), nil
	}
	return fmt.Sprintf("%s: %d°C, %s", city, tempC, cond), nil
}
