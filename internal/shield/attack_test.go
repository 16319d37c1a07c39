package shield

import (
	"context"
	"testing"
)

func TestAttackRule(t *testing.T) {
	rule := NewAttackRule(ModeLive)
	cases := []struct {
		path, query string
		deny        bool
	}{
		{"/api/auth/sign-in/email", "", false},
		{"/api/auth/sign-in/email", "callbackURL=%2Fdashboard", false},
		{"/api/auth/../../etc/passwd", "", true},
		{"/api/auth/sign-up/email", "x=%3Cscript%3Ealert(1)%3C%2Fscript%3E", true},
		{"/api/auth/sign-up/email", "x=%253Cscript%253E", true},
		{"/api/auth/sign-in/email", "q=1%27%20UNION%20SELECT%20password", true},
		{"/api/auth/sign-in/email", "h=${jndi:ldap://x}", true},
	}
	for _, tc := range cases {
		res, err := rule.Evaluate(context.Background(), Request{Path: tc.path, Query: tc.query})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := res.Conclusion == ConclusionDeny; got != tc.deny {
			t.Errorf("%s?%s: deny=%v, want %v", tc.path, tc.query, got, tc.deny)
		}
		if tc.deny && (res.Reason.Shield == nil || res.Reason.Shield.Signature == "") {
			t.Errorf("%s?%s: expected matched signature", tc.path, tc.query)
		}
	}
}
