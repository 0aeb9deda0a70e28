// Package transform provides payload transform functions applied to
// broadcast messages before they reach a consumer.
package transform

// TransformFunc transforms a broadcast payload. It returns the
// transformed payload and true, or nil and false to drop the message.
type TransformFunc func(message any) (any, bool)

// Chain composes transforms left to right. A transform dropping the
// message short-circuits the rest of the chain.
func Chain(transforms ...TransformFunc) TransformFunc {
	return func(message any) (any, bool) {
		for _, t := range transforms {
			var ok bool
			message, ok = t(message)
			if !ok {
				return nil, false
			}
		}
		return message, true
	}
}
