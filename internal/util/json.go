package util

import (
	"encoding/json"
	"errors"
	"reflect"
)

// SerializeToJSON serializes the given struct to JSON bytes.
func SerializeToJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

// SerializeToJSONString serializes the given struct to a JSON string.
func SerializeToJSONString(v interface{}) (string, error) {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(jsonBytes), nil
}

// DeserializeFromJSON deserializes the given JSON bytes into the given struct.
func DeserializeFromJSON(data []byte, v interface{}) error {
	// Check if v is a pointer
	if reflect.ValueOf(v).Kind() != reflect.Ptr {
		return errors.New("input must be a pointer")
	}
	return json.Unmarshal(data, v)
}
