package domain

import "testing"

func TestRecord_UnsetFieldsReportUnknown(t *testing.T) {
	r := NewRecord("Heat", KindMovie)
	if got := r.Value(FieldPlot); got != Unknown {
		t.Fatalf("未设置字段应为 UNKNOWN，实际：%q", got)
	}
	if got := r.Source(FieldPlot); got != Unknown {
		t.Fatalf("未设置字段的来源应为 UNKNOWN，实际：%q", got)
	}
	if r.HasValue(FieldGenres) {
		t.Fatalf("空列表不应视为有值")
	}
}

func TestRecord_EntriesRestoreRoundTrip(t *testing.T) {
	r := NewRecord("Heat", KindMovie)
	r.Assign(FieldTitle, "Heat", "nfo")
	r.ResetList(FieldGenres, "imdb")
	r.AppendItem(FieldGenres, "Crime")
	r.AppendItem(FieldGenres, "Drama")
	r.ResetList(FieldPeopleActors, "imdb")
	r.AppendPerson(FieldPeopleActors, Person{Name: "Al Pacino", Character: "Vincent Hanna"})

	cp := NewRecord("Heat", KindMovie)
	for _, e := range r.Entries() {
		cp.Restore(e)
	}

	if cp.Value(FieldTitle) != "Heat" || cp.Source(FieldTitle) != "nfo" {
		t.Fatalf("title 恢复不正确：%q/%q", cp.Value(FieldTitle), cp.Source(FieldTitle))
	}
	if g := cp.List(FieldGenres); len(g) != 2 || g[1] != "Drama" || cp.Source(FieldGenres) != "imdb" {
		t.Fatalf("genres 恢复不正确：%v/%q", g, cp.Source(FieldGenres))
	}
	if p := cp.People(FieldPeopleActors); len(p) != 1 || p[0].Character != "Vincent Hanna" {
		t.Fatalf("people.actors 恢复不正确：%+v", p)
	}
	if c := cp.Contributions(); c["imdb"] != 2 || c["nfo"] != 1 {
		t.Fatalf("contributions 不正确：%v", c)
	}
}

func TestIsValid(t *testing.T) {
	cases := map[string]bool{"": false, "  ": false, "UNKNOWN": false, "unknown": false, "x": true}
	for in, want := range cases {
		if got := IsValid(in); got != want {
			t.Fatalf("IsValid(%q)=%v, want %v", in, got, want)
		}
	}
}

func TestParseFieldAndKind(t *testing.T) {
	if f, ok := ParseField(" People.Actors "); !ok || f != FieldPeopleActors {
		t.Fatalf("ParseField 失败：%q %v", f, ok)
	}
	if _, ok := ParseField("rating"); ok {
		t.Fatalf("未知字段不应被接受")
	}
	if k, err := ParseKind("TVShow"); err != nil || k != KindTV {
		t.Fatalf("ParseKind 失败：%q %v", k, err)
	}
	if _, err := ParseKind("anime"); err == nil {
		t.Fatalf("未知 kind 应报错")
	}
	if !FieldPeopleWriters.Spec().People || FieldPeopleWriters.Spec().Role != RoleWriter {
		t.Fatalf("people.writers 元信息不正确")
	}
}
