package coze

import (
	"reflect"
	"testing"
)

func TestNormalizeUnwrapsStringifiedLayers(t *testing.T) {
	inner := `{"info":{"face_type":"宽脸"},"urls":["https://t/1.jpg"]}`
	raw := mustJSON(t, map[string]any{"output": inner})

	got, ok := Normalize(raw).(map[string]any)
	if !ok {
		t.Fatalf("Normalize returned %T, want object", Normalize(raw))
	}
	if _, ok := got["info"]; !ok {
		t.Fatalf("expected info at top level, got %v", got)
	}
	urls := stringList(got["urls"])
	if len(urls) != 1 || urls[0] != "https://t/1.jpg" {
		t.Fatalf("urls = %v, want sibling urls kept", urls)
	}
}

func TestNormalizeCases(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want any
	}{
		{
			name: "singleton array",
			in:   []any{map[string]any{"gender": "female"}},
			want: map[string]any{"gender": "female"},
		},
		{
			name: "plain output list is terminal",
			in:   map[string]any{"output": []any{"https://img/1.jpg"}},
			want: map[string]any{"output": []any{"https://img/1.jpg"}},
		},
		{
			name: "empty output list is terminal",
			in:   `{"output":[]}`,
			want: map[string]any{"output": []any{}},
		},
		{
			name: "stringified single url output",
			in:   map[string]any{"output": `["https://img/1.jpg"]`},
			want: map[string]any{"output": []any{"https://img/1.jpg"}},
		},
		{
			name: "stringified multi url output",
			in:   map[string]any{"output": `["https://img/1.jpg","https://img/2.jpg"]`},
			want: map[string]any{"output": []any{"https://img/1.jpg", "https://img/2.jpg"}},
		},
		{
			name: "whole reply stringified with stringified output",
			in:   `{"output":"[\"https://img/1.jpg\"]"}`,
			want: map[string]any{"output": []any{"https://img/1.jpg"}},
		},
		{
			name: "scalar wrapper is not descended",
			in:   map[string]any{"data": "ok", "msg": "done"},
			want: map[string]any{"data": "ok", "msg": "done"},
		},
		{
			name: "terminal object keeps siblings",
			in: map[string]any{
				"info": nil,
				"urls": []any{},
				"data": map[string]any{"x": 1.0},
			},
			want: map[string]any{
				"info": nil,
				"urls": []any{},
				"data": map[string]any{"x": 1.0},
			},
		},
		{
			name: "non json string",
			in:   "hello",
			want: "hello",
		},
		{
			name: "multi element array",
			in:   []any{"a", "b"},
			want: []any{"a", "b"},
		},
		{
			name: "Output and result wrappers",
			in:   map[string]any{"Output": map[string]any{"result": `{"userType":"adult"}`}},
			want: map[string]any{"userType": "adult"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Normalize(tc.in)
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("Normalize() = %#v, want %#v", got, tc.want)
			}
		})
	}
}

func TestNormalizeIsBounded(t *testing.T) {
	wrap := func(levels int) any {
		var v any = map[string]any{"face_type": "wide"}
		for i := 0; i < levels; i++ {
			v = map[string]any{"data": v}
		}
		return v
	}

	shallow, ok := Normalize(wrap(3)).(map[string]any)
	if !ok || shallow["face_type"] != "wide" {
		t.Fatalf("3 wrappers: got %v, want innermost payload", shallow)
	}

	// Each singleton array costs one step just like a key wrapper.
	inner := map[string]any{"face_type": "wide"}
	mixed := func(outer ...string) any {
		var v any = inner
		layers := []string{"[]", "output", "[]", "result", "[]", "data"}
		layers = append(layers, outer...)
		for _, layer := range layers {
			if layer == "[]" {
				v = []any{v}
			} else {
				v = map[string]any{layer: v}
			}
		}
		return v
	}
	if got := Normalize(mixed()); !reflect.DeepEqual(got, inner) {
		t.Fatalf("6 mixed wrappers: got %#v, want innermost payload", got)
	}
	if got := Normalize(mixed("json")); reflect.DeepEqual(got, inner) {
		t.Fatalf("7 mixed wrappers: got innermost payload, want unwrapping to stop after 6 steps")
	}

	deep, ok := Normalize(wrap(10)).(map[string]any)
	if !ok {
		t.Fatalf("10 wrappers: got %T", Normalize(wrap(10)))
	}
	if _, ok := deep["data"]; !ok {
		t.Fatalf("10 wrappers: got %v, want unwrapping to stop early", deep)
	}
}
