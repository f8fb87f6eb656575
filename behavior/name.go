package behavior

import "reflect"

// Named can be implemented by requests to control the name used in logs,
// spans, metrics and rate-limit keys.
type Named interface {
	RequestName() string
}

// RequestName returns a short, stable name for req.
// It uses Named when implemented and the type name otherwise,
// so CreateEmployee{} and &CreateEmployee{} are both "CreateEmployee".
func RequestName(req any) string {
	if n, ok := req.(Named); ok {
		return n.RequestName()
	}

	t := reflect.TypeOf(req)
	if t == nil {
		return "<nil>"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
