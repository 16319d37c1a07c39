package gate

import "strings"

// RouteClass is the gate's view of an auth endpoint.
type RouteClass int

const (
	// RouteAction is any auth write that is not account creation.
	RouteAction RouteClass = iota
	// RouteSignUp is account creation.
	RouteSignUp
)

func (r RouteClass) String() string {
	switch r {
	case RouteSignUp:
		return "sign_up"
	default:
		return "action"
	}
}

var routeTable = []struct {
	suffix string
	class  RouteClass
}{
	{"/sign-up/email", RouteSignUp},
	{"/sign-up", RouteSignUp},
}

// ClassifyRoute maps a request path to its RouteClass. Unknown paths are
// RouteAction.
func ClassifyRoute(path string) RouteClass {
	path = strings.TrimRight(path, "/")
	for _, entry := range routeTable {
		if strings.HasSuffix(path, entry.suffix) {
			return entry.class
		}
	}
	return RouteAction
}
