package command

import (
	"reflect"
	"testing"

	"mobridge/internal/models"
)

func TestParseLine(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantName string
		wantOK   bool
	}{
		{"plain command", "/mo sync", "sync", true},
		{"bare namespace", "/mo", "", true},
		{"leading whitespace", "  /mo status  ", "status", true},
		{"uppercase name lowered", "/mo SYNC", "sync", true},
		{"not namespaced", "hello world", "", false},
		{"namespace substring", "/monitor up", "", false},
		{"empty line", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, _, ok := ParseLine(tt.line)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if name != tt.wantName {
				t.Fatalf("name = %q, want %q", name, tt.wantName)
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	tests := []struct {
		name string
		tail string
		want Params
	}{
		{
			"unquoted values",
			"direction:push dryrun:true",
			Params{"direction": "push", "dryrun": "true"},
		},
		{
			"quoted value preserves whitespace",
			`title:"fix the build" team:eng`,
			Params{"title": "fix the build", "team": "eng"},
		},
		{
			"escaped quote inside quoted value",
			`body:"say \"hi\" twice"`,
			Params{"body": `say "hi" twice`},
		},
		{
			"malformed token dropped",
			`good:value :orphan bad`,
			Params{"good": "value"},
		},
		{
			"empty tail",
			"",
			Params{},
		},
		{
			"duplicate key keeps last",
			"team:a team:b",
			Params{"team": "b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseParams(tt.tail)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("ParseParams(%q) = %v, want %v", tt.tail, got, tt.want)
			}
		})
	}
}

func TestParamCoercion(t *testing.T) {
	params := Params{"limit": "50", "force": "true", "direction": "pull", "bad": "nope"}

	limit, err := params.Int("limit", 0)
	if err != nil || limit != 50 {
		t.Fatalf("Int = %d, %v", limit, err)
	}
	if _, err := params.Int("bad", 0); err == nil {
		t.Fatal("expected error for non-integer")
	}
	def, err := params.Int("absent", 7)
	if err != nil || def != 7 {
		t.Fatalf("Int default = %d, %v", def, err)
	}

	force, err := params.Bool("force", false)
	if err != nil || !force {
		t.Fatalf("Bool = %v, %v", force, err)
	}
	if _, err := params.Bool("bad", false); err == nil {
		t.Fatal("expected error for non-boolean")
	}

	direction, err := params.Direction("direction", models.DirectionBoth)
	if err != nil || direction != models.DirectionPull {
		t.Fatalf("Direction = %v, %v", direction, err)
	}
	if _, err := params.Direction("bad", models.DirectionBoth); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestParamsList(t *testing.T) {
	params := Params{"states": "started, completed,,backlog "}
	got := params.List("states")
	want := []string{"started", "completed", "backlog"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("List = %v, want %v", got, want)
	}
	if params.List("absent") != nil {
		t.Fatal("expected nil for absent key")
	}
}
