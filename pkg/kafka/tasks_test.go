package kafka

import (
	"testing"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

func TestTaskEntity(t *testing.T) {
	tests := []struct {
		name     string
		task     Task
		wantKind string
		wantID   string
	}{
		{
			name:     "portfolio",
			task:     Task{PortfolioID: "p1"},
			wantKind: models.EntityKindPortfolio,
			wantID:   "p1",
		},
		{
			name:     "application",
			task:     Task{PortfolioID: "p1", ApplicationID: "a1"},
			wantKind: models.EntityKindApplication,
			wantID:   "a1",
		},
		{
			name:     "environment",
			task:     Task{PortfolioID: "p1", ApplicationID: "a1", EnvironmentID: "e1"},
			wantKind: models.EntityKindEnvironment,
			wantID:   "e1",
		},
		{
			name:     "role group",
			task:     Task{PortfolioID: "p1", UserID: "u1", EnvironmentRoleIDs: []string{"r1", "r2"}},
			wantKind: models.EntityKindEnvironmentRole,
			wantID:   "r1",
		},
		{
			name:     "empty",
			task:     Task{},
			wantKind: "",
			wantID:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id := tt.task.Entity()
			if kind != tt.wantKind || id != tt.wantID {
				t.Fatalf("Entity() = (%q, %q), want (%q, %q)", kind, id, tt.wantKind, tt.wantID)
			}
		})
	}
}

func TestTaskKeyGroupsRolesByPortfolioAndUser(t *testing.T) {
	task := Task{PortfolioID: "p1", UserID: "u1", EnvironmentRoleIDs: []string{"r1"}}
	if got := string(task.Key()); got != "p1:u1" {
		t.Fatalf("Key() = %q, want %q", got, "p1:u1")
	}

	portfolio := Task{PortfolioID: "p1"}
	if got := string(portfolio.Key()); got != "p1" {
		t.Fatalf("Key() = %q, want %q", got, "p1")
	}
}
