package models

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	apperrors "github.com/maruel/bgstudio/internal/errors"
)

func TestUserPatchApply(t *testing.T) {
	u := &User{ID: "1", Bio: "old", Skills: []string{"a"}, Roles: []UserRole{RoleDesigner}}
	bio := "new"
	skills := []string{"b", "c"}
	p := UserPatch{Bio: &bio, Skills: &skills}
	p.Apply(u)
	want := &User{ID: "1", Bio: "new", Skills: []string{"b", "c"}, Roles: []UserRole{RoleDesigner}}
	if diff := cmp.Diff(want, u); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
	skills[0] = "mutated"
	if u.Skills[0] != "b" {
		t.Error("Apply() must copy slices")
	}
}

func TestUserPatchJSON(t *testing.T) {
	var p UserPatch
	if err := json.Unmarshal([]byte(`{"bio":"","skills":["x"]}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Bio == nil || *p.Bio != "" {
		t.Error("explicit empty bio must be kept")
	}
	if p.DisplayName != nil {
		t.Error("absent field must stay nil")
	}
}

func TestClone(t *testing.T) {
	g := &Group{ID: "g", Name: "n", CreatorID: "u", Members: []Member{{UserID: "u", Role: GroupOwner}}}
	c := g.Clone()
	c.Members[0].Role = GroupMember
	if g.Members[0].Role != GroupOwner {
		t.Error("Group.Clone() shares members")
	}
	u := &User{ID: "1", Email: "a@x.com", Interests: []string{"x"}}
	cu := u.Clone()
	cu.Interests[0] = "y"
	if u.Interests[0] != "x" {
		t.Error("User.Clone() shares interests")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		row  interface{ Validate() error }
		code apperrors.ErrorCode
	}{
		{"user_ok", &User{ID: "1", Email: "a@x.com"}, ""},
		{"user_no_email", &User{ID: "1"}, apperrors.ErrMissingField},
		{"project_no_creator", &Project{ID: "p", Title: "t"}, apperrors.ErrMissingField},
		{"project_bad_status", &Project{ID: "p", Title: "t", CreatorID: "u", Status: "shipped"}, apperrors.ErrValidationFailed},
		{"job_ok", &Job{ID: "j", Title: "t", PosterID: "u"}, ""},
		{"event_no_title", &Event{ID: "e", OrganizerID: "u"}, apperrors.ErrMissingField},
		{"group_dup_member", &Group{ID: "g", Name: "n", CreatorID: "u", Members: []Member{{UserID: "u"}, {UserID: "u"}}}, apperrors.ErrConflict},
		{"listing_negative", &Listing{ID: "l", Title: "t", SellerID: "u", PriceCents: -5}, apperrors.ErrValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.row.Validate()
			if got := apperrors.CodeOf(err); got != tt.code {
				t.Errorf("Validate() = %v, want code %q", err, tt.code)
			}
		})
	}
}

func TestExtraFields(t *testing.T) {
	t.Run("user", func(t *testing.T) {
		in := `{"id":"1","displayName":"Alice","email":"a@x.com","portfolio":["p1"],"socialLinks":{"x":"@alice"}}`
		var u User
		if err := json.Unmarshal([]byte(in), &u); err != nil {
			t.Fatal(err)
		}
		want := Extra{"portfolio": json.RawMessage(`["p1"]`), "socialLinks": json.RawMessage(`{"x":"@alice"}`)}
		if diff := cmp.Diff(want, u.Extra); diff != "" {
			t.Errorf("Extra mismatch (-want +got):\n%s", diff)
		}
		out, err := json.Marshal(&u)
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]json.RawMessage
		if err := json.Unmarshal(out, &got); err != nil {
			t.Fatal(err)
		}
		for k, v := range map[string]string{"id": `"1"`, "email": `"a@x.com"`, "portfolio": `["p1"]`, "socialLinks": `{"x":"@alice"}`} {
			if string(got[k]) != v {
				t.Errorf("%s = %s, want %s", k, got[k], v)
			}
		}
	})
	t.Run("declared_keys_ignore_case", func(t *testing.T) {
		var p Project
		if err := json.Unmarshal([]byte(`{"id":"p","Title":"T"}`), &p); err != nil {
			t.Fatal(err)
		}
		if p.Title != "T" || p.Extra != nil {
			t.Errorf("got %+v", p)
		}
	})
	t.Run("extra_cannot_shadow_fields", func(t *testing.T) {
		l := Listing{ID: "l", Title: "t", Extra: Extra{"title": json.RawMessage(`"other"`), "zz": nil}}
		out, err := json.Marshal(l)
		if err != nil {
			t.Fatal(err)
		}
		var got map[string]json.RawMessage
		if err := json.Unmarshal(out, &got); err != nil {
			t.Fatal(err)
		}
		if string(got["title"]) != `"t"` || string(got["zz"]) != "null" {
			t.Errorf("got %s", out)
		}
	})
	t.Run("nested_members", func(t *testing.T) {
		in := `{"id":"g","name":"n","creatorId":"u","members":[{"userId":"u","role":"owner","nickname":"boss"}],"banner":"b.png"}`
		var g Group
		if err := json.Unmarshal([]byte(in), &g); err != nil {
			t.Fatal(err)
		}
		c := g.Clone()
		c.Members[0].Extra["nickname"] = json.RawMessage(`"changed"`)
		if string(g.Members[0].Extra["nickname"]) != `"boss"` {
			t.Error("Group.Clone() shares member extras")
		}
		out, err := json.Marshal(&g)
		if err != nil {
			t.Fatal(err)
		}
		var again Group
		if err := json.Unmarshal(out, &again); err != nil {
			t.Fatal(err)
		}
		if string(again.Extra["banner"]) != `"b.png"` || string(again.Members[0].Extra["nickname"]) != `"boss"` {
			t.Errorf("round trip lost extras: %s", out)
		}
	})
	t.Run("wrong_shape", func(t *testing.T) {
		var u User
		if err := json.Unmarshal([]byte(`{"id":"1","joinedAt":"2024-01-15"}`), &u); err == nil {
			t.Error("expected an error for a malformed time")
		}
	})
}
