package wled

// Result is the uniform {ok, data, error} shape every board call is reduced
// to before it reaches the store or the REST API.
type Result[T any] struct {
	OK    bool   `json:"ok"`
	Data  T      `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Normalize folds a value and an error into a Result.
func Normalize[T any](data T, err error) Result[T] {
	if err != nil {
		return Result[T]{OK: false, Error: ShortMessage(err)}
	}
	return Result[T]{OK: true, Data: data}
}
