package odm

import (
	"reflect"
	"testing"
)

func TestParseTag(t *testing.T) {
	tag, err := parseTag(`name,required,max_length:40,choices:'a,b|c',omitempty`)
	if err != nil {
		t.Fatal(err)
	}
	if tag.Name() != "name" || !tag.Required() || !tag.OmitEmpty() {
		t.Errorf("unexpected tag %+v", tag)
	}
	if n, ok, err := tag.IntValue("max_length"); n != 40 || !ok || err != nil {
		t.Errorf("expecting max_length 40, got %d, %v, %v", n, ok, err)
	}
	if _, ok, _ := tag.IntValue("min_length"); ok {
		t.Error("expecting no min_length")
	}
	if c := tag.Choices(); !reflect.DeepEqual(c, []string{"a,b", "c"}) {
		t.Errorf("unexpected choices %q", c)
	}
	empty, err := parseTag("")
	if err != nil || !empty.IsEmpty() {
		t.Errorf("expecting an empty tag, got %+v, %v", empty, err)
	}
	for _, v := range []string{"name,bogus", "name,min_length", "name,choices:"} {
		if _, err := parseTag(v); err == nil {
			t.Errorf("expecting an error parsing %q", v)
		}
	}
	bad, err := parseTag("name,max_length:x")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := bad.IntValue("max_length"); !ok || err == nil {
		t.Error("expecting an error from an invalid max_length")
	}
}
