package repo

import "testing"

func TestGroupMatcher_SQLPattern(t *testing.T) {
	cases := []struct {
		matcher GroupMatcher
		want    string
	}{
		{GroupMatcher{MatchEquals, "billing"}, "billing"},
		{GroupMatcher{MatchStartsWith, "bill"}, "bill%"},
		{GroupMatcher{MatchEndsWith, "eu"}, "%eu"},
		{GroupMatcher{MatchContains, "ill"}, "%ill%"},
		{GroupMatcher{MatchAnything, ""}, "%"},
	}
	for _, c := range cases {
		got, err := c.matcher.SQLPattern()
		if err != nil {
			t.Fatalf("SQLPattern() error: %v", err)
		}
		if got != c.want {
			t.Errorf("%+v.SQLPattern() = %q, want %q", c.matcher, got, c.want)
		}
	}
}

func TestGroupMatcher_SQLPattern_EscapesLikeMetacharacters(t *testing.T) {
	p, err := GroupMatcher{MatchContains, "100%"}.SQLPattern()
	if err != nil {
		t.Fatal(err)
	}
	if p != `%100\%%` {
		t.Errorf("SQLPattern() = %q, want escaped literal percent", p)
	}
}

func TestGroupMatcher_UnknownOperator(t *testing.T) {
	if _, err := (GroupMatcher{Operator: "BOGUS"}).SQLPattern(); err == nil {
		t.Error("expected error for unknown operator")
	}
}
