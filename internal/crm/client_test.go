package crm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlugifyStage(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "Interested", "interested"},
		{"spaces", "Follow Up", "follow-up"},
		{"punctuation runs", "Hot!! Lead??", "hot-lead"},
		{"leading junk", "  Demo Booked ", "demo-booked"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SlugifyStage(tt.in))
		})
	}
}

func TestClient_Stages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orgs/org-1/stages", r.URL.Path)
		// Out of order on purpose; the client sorts by Order.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"stages": []map[string]any{
				{"name": "Follow Up", "order": 2},
				{"name": "New", "order": 0},
				{"name": "Interested", "order": 1},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", srv.Client())
	stages, err := c.Stages(context.Background())
	require.NoError(t, err)
	require.Len(t, stages, 3)

	assert.Equal(t, "New", stages[0].Name)
	assert.True(t, stages[0].IsDefault())
	assert.Equal(t, "interested", stages[1].Slug)
	assert.Equal(t, "follow-up", stages[2].Slug)
	assert.False(t, stages[2].IsDefault())
}

func TestClient_LeadsPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/orgs/org-1/leads", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "3", q.Get("page"))
		assert.Equal(t, "500", q.Get("page_size"))
		assert.NotEmpty(t, q.Get("since"))

		_ = json.NewEncoder(w).Encode(LeadsPage{
			Items: []Lead{
				{ID: "l1", Stage: "interested", Business: Business{Name: "Acme", Mobile: "+91 98765 43210"}},
			},
			TotalPages: 7,
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", srv.Client())
	page, err := c.LeadsPage(context.Background(), 3, 9999, 30)
	require.NoError(t, err)

	assert.Equal(t, 7, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Acme", page.Items[0].Business.Name)
}

func TestClient_LeadsPage_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", srv.Client())
	_, err := c.LeadsPage(context.Background(), 1, 100, 30)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestClient_CreateLead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var in NewLeadInput
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Acme", in.Name)

		_ = json.NewEncoder(w).Encode(Lead{ID: "l-new", Stage: in.Stage})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", srv.Client())
	lead, err := c.CreateLead(context.Background(), NewLeadInput{
		Name: "Acme", Mobile: "+91 98765 43210", Stage: "interested",
	})
	require.NoError(t, err)
	assert.Equal(t, "l-new", lead.ID)
}

func TestClient_UpdateLead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v1/orgs/org-1/leads/l1", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "org-1", srv.Client())
	err := c.UpdateLead(context.Background(), "l1", UpdateLeadInput{Stage: "follow-up"})
	require.NoError(t, err)
}

func TestClient_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(srv.URL, "org-1", srv.Client())
	_, err := c.Stages(ctx)
	require.Error(t, err)
}
