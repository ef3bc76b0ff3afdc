package tools

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strings"
)

type CityUUIDInput struct {
	City string `json:"city" jsonschema_description:"City to fetch the reference ID for."`
}

var CityUUIDDefinition = ToolDefinition{
	Name:        "get_city_uuid",
	Description: "Look up the opaque reference ID for a city. The ID is required by downstream tools that take a city_id.",
	InputSchema: CityUUIDInputSchema,
	Function:    GetCityUUID,
}

var CityUUIDInputSchema = GenerateSchema[CityUUIDInput]()

func GetCityUUID(input json.RawMessage) (string, error) {
	var in CityUUIDInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	city := strings.TrimSpace(in.City)
	if city == "" {
		return "", fmt.Errorf("city must not be empty")
	}
	return fmt.Sprintf("%s ID: %s", city, newUUID()), nil
}

// newUUID returns a random RFC 4122 version 4 UUID string.
func newUUID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "00000000-0000-4000-8000-000000000000"
	}
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:16])
}
