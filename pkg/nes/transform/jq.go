package transform

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/itchyny/gojq"
	"go.uber.org/zap"
)

// isStruct returns true if the value is a struct or a pointer to a struct
func isStruct(v any) bool {
	if v == nil {
		return false
	}
	t := reflect.TypeOf(v)
	// Check if it's a direct struct
	if t.Kind() == reflect.Struct {
		return true
	}
	// Check if it's a pointer to a struct
	if t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct {
		return true
	}
	return false
}

// containsStructs returns true if the value is a slice or array that contains structs
func containsStructs(v any) bool {
	if v == nil {
		return false
	}

	t := reflect.TypeOf(v)

	if t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		elemType := t.Elem()

		if elemType.Kind() == reflect.Struct {
			return true
		}

		if elemType.Kind() == reflect.Ptr && elemType.Elem().Kind() == reflect.Struct {
			return true
		}
	}

	return false
}

// JqTransform creates a TransformFunc that applies a JQ query to
// broadcast payloads.
//
// The query operates on the payload, which can be any JSON-serializable
// value. The transform handles various payload types:
//   - Maps/objects and slices of primitives: used directly
//   - Structs, *structs, and slices containing structs: converted via
//     JSON marshaling/unmarshaling to primitive maps
//   - JSON strings and byte slices: parsed when valid, otherwise treated
//     as plain strings
//
// If the query produces multiple results, they are collected into an
// array. If it produces no results, the message is dropped.
//
// When a logger is provided, runtime errors during transformation are
// logged, and the transform passes the original payload through
// unchanged.
func JqTransform(jqQuery string, logger *zap.Logger) (TransformFunc, error) {
	query, err := gojq.Parse(jqQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to parse JQ query '%s': %w", jqQuery, err)
	}

	compiledQuery, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile JQ query '%s': %w", jqQuery, err)
	}

	return func(message any) (any, bool) {
		// Convert the payload to a form JQ can process
		var jqInput any

		switch payload := message.(type) {
		case string:
			// Try to parse as JSON first
			if err := json.Unmarshal([]byte(payload), &jqInput); err != nil {
				// Not valid JSON, treat it as a plain string
				jqInput = payload
			}
		case []byte:
			if err := json.Unmarshal(payload, &jqInput); err != nil {
				jqInput = string(payload)
			}
		default:
			if isStruct(payload) || containsStructs(payload) {
				// Round-trip through JSON so structs become primitive maps
				jsonBytes, err := json.Marshal(payload)
				if err != nil {
					if logger != nil {
						logger.Error("JQ transform: failed to marshal payload",
							zap.String("jq_query", jqQuery),
							zap.Error(err))
					}
					return message, true
				}
				if err := json.Unmarshal(jsonBytes, &jqInput); err != nil {
					if logger != nil {
						logger.Error("JQ transform: failed to unmarshal payload",
							zap.String("jq_query", jqQuery),
							zap.Error(err))
					}
					return message, true
				}
			} else {
				jqInput = payload
			}
		}

		// Run the query and collect the results
		var results []any
		iter := compiledQuery.Run(jqInput)
		for {
			result, ok := iter.Next()
			if !ok {
				break
			}
			if err, isErr := result.(error); isErr {
				if logger != nil {
					logger.Error("JQ transform: query execution failed",
						zap.String("jq_query", jqQuery),
						zap.Error(err))
				}
				return message, true
			}
			results = append(results, result)
		}

		switch len(results) {
		case 0:
			// No results: drop the message
			return nil, false
		case 1:
			return results[0], true
		default:
			return results, true
		}
	}, nil
}
