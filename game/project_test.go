package game

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Seednode/deception/catalog"
)

// rolesRoom builds a room with one player per role, ids matching roles.
func rolesRoom(withAccomplice bool) *Room {
	r := NewRoom("room-1", "ABCDEF")

	roles := []Role{RoleForensic, RoleMurderer, RoleWitness, RoleInvestigator}
	if withAccomplice {
		roles = append(roles, RoleAccomplice)
	}

	for _, role := range roles {
		p := r.AddPlayer(string(role), string(role))
		p.Role = role
	}

	return r
}

func projected(t *testing.T, r *Room, viewerID string) map[string]Role {
	t.Helper()

	state := Project(context.Background(), r, viewerID, catalog.NewStatic())
	require.NotNil(t, state)

	out := make(map[string]Role)
	for _, pv := range state.Players {
		out[pv.ID] = pv.Role
	}

	return out
}

func TestVisibleRoleTable(t *testing.T) {
	r := rolesRoom(true)
	r.Phase = PhaseInvestigation

	cases := []struct {
		viewer string
		want   map[string]Role
	}{
		{
			// The forensic scientist sees every role.
			viewer: string(RoleForensic),
			want: map[string]Role{
				string(RoleForensic):     RoleForensic,
				string(RoleMurderer):     RoleMurderer,
				string(RoleAccomplice):   RoleAccomplice,
				string(RoleWitness):      RoleWitness,
				string(RoleInvestigator): RoleInvestigator,
			},
		},
		{
			// The murderer sees self, accomplice and forensic.
			viewer: string(RoleMurderer),
			want: map[string]Role{
				string(RoleForensic):     RoleForensic,
				string(RoleMurderer):     RoleMurderer,
				string(RoleAccomplice):   RoleAccomplice,
				string(RoleWitness):      RoleUnknown,
				string(RoleInvestigator): RoleUnknown,
			},
		},
		{
			// The accomplice mirrors the murderer's view.
			viewer: string(RoleAccomplice),
			want: map[string]Role{
				string(RoleForensic):     RoleForensic,
				string(RoleMurderer):     RoleMurderer,
				string(RoleAccomplice):   RoleAccomplice,
				string(RoleWitness):      RoleUnknown,
				string(RoleInvestigator): RoleUnknown,
			},
		},
		{
			// The witness knows the murderer but not the accomplice.
			viewer: string(RoleWitness),
			want: map[string]Role{
				string(RoleForensic):     RoleForensic,
				string(RoleMurderer):     RoleMurderer,
				string(RoleAccomplice):   RoleUnknown,
				string(RoleWitness):      RoleWitness,
				string(RoleInvestigator): RoleUnknown,
			},
		},
		{
			// Investigators see only themselves and the public forensic.
			viewer: string(RoleInvestigator),
			want: map[string]Role{
				string(RoleForensic):     RoleForensic,
				string(RoleMurderer):     RoleUnknown,
				string(RoleAccomplice):   RoleUnknown,
				string(RoleWitness):      RoleUnknown,
				string(RoleInvestigator): RoleInvestigator,
			},
		},
	}

	for _, tc := range cases {
		t.Run("viewer "+tc.viewer, func(t *testing.T) {
			assert.Equal(t, tc.want, projected(t, r, tc.viewer))
		})
	}
}

func TestVisibleRoleBeforeStart(t *testing.T) {
	r := NewRoom("room-1", "ABCDEF")
	r.AddPlayer("a", "A")
	r.AddPlayer("b", "B")

	for _, role := range projected(t, r, "a") {
		assert.Empty(t, role, "no roles exist in the lobby")
	}
}

func TestSolutionVisibility(t *testing.T) {
	r := rolesRoom(true)
	r.MurdererID = string(RoleMurderer)
	r.MeansID = "means_knife"
	r.ClueID = "clue_glasses"

	see := func(viewerID string) bool {
		state := Project(context.Background(), r, viewerID, catalog.NewStatic())
		return state.Solution != nil
	}

	r.Phase = PhaseCrimeSelection
	assert.True(t, see(string(RoleForensic)))
	assert.True(t, see(string(RoleMurderer)))
	assert.False(t, see(string(RoleAccomplice)), "accomplice waits for the crime to be locked in")
	assert.False(t, see(string(RoleWitness)))
	assert.False(t, see(string(RoleInvestigator)))

	r.Phase = PhaseInvestigation
	assert.True(t, see(string(RoleAccomplice)))
	assert.False(t, see(string(RoleWitness)))

	r.Phase = PhaseGameOver
	for _, viewer := range []Role{RoleForensic, RoleMurderer, RoleAccomplice, RoleWitness, RoleInvestigator} {
		assert.True(t, see(string(viewer)), "everyone sees the solution after the game")
	}
}

func TestPrivateCardsOnlyInOwnView(t *testing.T) {
	env := testEnv(20)
	r := startedRoom(t, 4, env)

	var suspect *Player
	for _, p := range r.Players {
		if p.Role != RoleForensic {
			suspect = p
			break
		}
	}
	require.NotNil(t, suspect)

	state := Project(context.Background(), r, suspect.ID, env.Catalog)
	for _, pv := range state.Players {
		if pv.ID == suspect.ID {
			assert.Len(t, pv.MeansPool, draftPoolSize)
			assert.Len(t, pv.CluePool, draftPoolSize)
			for _, cv := range pv.MeansPool {
				assert.NotEmpty(t, cv.Content, "cards are enriched from the catalog")
			}
			continue
		}
		assert.Empty(t, pv.MeansPool, "pools of %s leaked to another viewer", pv.ID)
		assert.Empty(t, pv.CluePool)
		assert.Empty(t, pv.MeansCards)
		assert.Empty(t, pv.ClueCards)
	}
}

func TestTurnOwnerHidesMurderer(t *testing.T) {
	r := rolesRoom(false)
	r.Phase = PhaseCrimeSelection

	owner := func(viewerID string) string {
		return Project(context.Background(), r, viewerID, nil).CurrentTurnOwner
	}

	assert.Equal(t, string(RoleMurderer), owner(string(RoleMurderer)))
	assert.Equal(t, string(RoleMurderer), owner(string(RoleForensic)))
	assert.Equal(t, string(RoleMurderer), owner(string(RoleWitness)), "the witness already knows the murderer")
	assert.Empty(t, owner(string(RoleInvestigator)), "the investigator must not learn whose turn it is")
}

func TestTurnOwnerWitnessPhaseIsPublic(t *testing.T) {
	r := rolesRoom(false)
	r.Phase = PhaseWitnessID
	r.MurdererID = string(RoleMurderer)

	owner := Project(context.Background(), r, string(RoleInvestigator), nil).CurrentTurnOwner
	assert.Equal(t, string(RoleMurderer), owner, "a landed accusation outs the murderer")
}

func TestPhaseDataTiles(t *testing.T) {
	r := rolesRoom(false)
	forensic := r.PlayerByRole(RoleForensic)
	sel := 1
	forensic.ActiveTiles = []Tile{{
		ID:       "tile_cause_of_death",
		Name:     "Cause of Death",
		Type:     catalog.TileCauseOfDeath,
		Options:  []string{"Suffocation", "Poisoning"},
		Selected: &sel,
	}}

	r.Phase = PhaseCrimeSelection
	state := Project(context.Background(), r, string(RoleInvestigator), nil)
	if state.Data != nil {
		assert.Empty(t, state.Data.Tiles, "tiles stay hidden until the forensic setup")
	}

	r.Phase = PhaseInvestigation
	state = Project(context.Background(), r, string(RoleInvestigator), nil)
	require.NotNil(t, state.Data)
	require.Len(t, state.Data.Tiles, 1)
	assert.Equal(t, &sel, state.Data.Tiles[0].Selected)
}

func TestWitnessPhaseHidesTurnForUnknownViewer(t *testing.T) {
	r := rolesRoom(false)
	r.Phase = PhaseLobby

	state := Project(context.Background(), r, "spectator", nil)
	assert.Equal(t, r.HostID, state.CurrentTurnOwner, "lobby turn belongs to the host")
	for _, pv := range state.Players {
		assert.Empty(t, pv.MeansPool)
	}
}

func TestEnrichUnknownCard(t *testing.T) {
	idx := indexCards(context.Background(), catalog.NewStatic())

	views := idx.enrich([]string{"means_knife", "no_such_card"})
	require.Len(t, views, 2)
	assert.NotEmpty(t, views[0].Content)
	assert.Equal(t, "Unknown Card", views[1].Content)
}
