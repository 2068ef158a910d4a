package confirm

import (
	"reflect"
	"testing"
)

func TestAutoApprove(t *testing.T) {
	candidates := []string{"Assets/a.dll", "Assets/b.dll"}

	got, err := Auto{Approve: true}.Confirm("delete files", candidates)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got, candidates) {
		t.Errorf("approved = %v, want all candidates", got)
	}
}

func TestAutoReject(t *testing.T) {
	got, err := Auto{}.Confirm("delete files", []string{"Assets/a.dll"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("approved = %v, want none", got)
	}
}

func TestInteractiveEmptyCandidates(t *testing.T) {
	got, err := Interactive{}.Confirm("delete files", nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("approved = %v, want none without prompting", got)
	}
}
