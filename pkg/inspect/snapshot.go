package inspect

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/vango-dev/pathway/internal/errors"
	"github.com/vango-dev/pathway/pkg/router"
)

// Snapshot is the JSON form of a router.State.
type Snapshot struct {
	Token           uint64        `json:"token"`
	Status          router.Status `json:"status"`
	Location        LocationView  `json:"location"`
	Matches         []MatchView   `json:"matches"`
	PendingLocation *LocationView `json:"pendingLocation,omitempty"`
	PendingMatches  []MatchView   `json:"pendingMatches,omitempty"`
}

// LocationView is the JSON form of a router.Location.
type LocationView struct {
	Href     string     `json:"href"`
	Pathname string     `json:"pathname"`
	Search   url.Values `json:"search,omitempty"`
	Hash     string     `json:"hash,omitempty"`
}

// MatchView is the JSON form of a router.Match.
type MatchView struct {
	ID        string             `json:"id"`
	RouteID   string             `json:"routeId"`
	Pathname  string             `json:"pathname"`
	Params    map[string]string  `json:"params,omitempty"`
	Status    router.MatchStatus `json:"status"`
	Data      any                `json:"data,omitempty"`
	Error     *ErrorView         `json:"error,omitempty"`
	NotFound  bool               `json:"notFound,omitempty"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// ErrorView is the JSON form of an error.
type ErrorView struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// SnapshotOf converts a router state.
func SnapshotOf(st router.State) Snapshot {
	s := Snapshot{
		Token:    st.Token,
		Status:   st.Status,
		Location: locationView(st.Location),
		Matches:  matchViews(st.Matches),
	}
	if st.PendingLocation != nil {
		loc := locationView(*st.PendingLocation)
		s.PendingLocation = &loc
		s.PendingMatches = matchViews(st.PendingMatches)
	}
	return s
}

func locationView(l router.Location) LocationView {
	return LocationView{
		Href:     l.Href,
		Pathname: l.Pathname,
		Search:   l.SearchParams,
		Hash:     l.Hash,
	}
}

func matchViews(matches []*router.Match) []MatchView {
	views := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		views = append(views, MatchView{
			ID:        m.ID,
			RouteID:   m.RouteID,
			Pathname:  m.Pathname,
			Params:    m.Params,
			Status:    m.Status,
			Data:      jsonSafe(m.Data),
			Error:     errorView(m.Error),
			NotFound:  m.NotFound != nil,
			UpdatedAt: m.UpdatedAt,
		})
	}
	return views
}

// jsonSafe returns v, or its printed form when v cannot be encoded.
func jsonSafe(v any) any {
	if v == nil {
		return nil
	}
	if _, err := json.Marshal(v); err != nil {
		return fmt.Sprintf("%v", v)
	}
	return v
}

func errorView(err error) *ErrorView {
	if err == nil {
		return nil
	}
	view := &ErrorView{Message: err.Error()}
	var re *errors.RouterError
	if errors.As(err, &re) {
		view.Code = re.Code
	}
	return view
}
