package registry

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tokenlab/tokencore/pkg/changelog"
	"github.com/tokenlab/tokencore/pkg/domain"
	"github.com/tokenlab/tokencore/pkg/editsession"
)

func TestNew_WiresAllServices(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)
	defer reg.Close()

	assert.NotNil(t, reg.Validator)
	assert.NotNil(t, reg.Store)
	assert.NotNil(t, reg.Storage)
	assert.NotNil(t, reg.Tracker)
	assert.NotNil(t, reg.Sessions)
	assert.NotNil(t, reg.Monitor)
	assert.NotNil(t, reg.Cache)
	assert.NotNil(t, reg.Loader)
	assert.NotNil(t, reg.Metrics)
}

func TestSessionSave_LandsInStorage(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)
	defer reg.Close()

	doc := domain.Document{"name": "primary", "type": "color", "value": "#ff0000", "description": "d"}
	session := reg.Sessions.StartEditSession("token", domain.TypeToken, "tok-1", editsession.ModeEdit, doc)
	require.NoError(t, reg.Sessions.SaveSession(session.ID))

	stored, exists := reg.Storage.Get("tokencore:data:token:tok-1")
	require.True(t, exists)
	payload, ok := stored.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "primary", payload["name"])
}

func TestSessionEdits_AppearInChangeLedger(t *testing.T) {
	reg, err := New(WithValidationDelay(0))
	require.NoError(t, err)
	defer reg.Close()

	doc := domain.Document{"name": "primary", "type": "color", "value": "#ff0000", "description": "d"}
	session := reg.Sessions.StartEditSession("token", domain.TypeToken, "tok-1", editsession.ModeEdit, doc)

	updated := domain.DeepCopy(doc)
	updated["value"] = "#00ff00"
	require.NoError(t, reg.Sessions.UpdateSessionData(session.ID, updated))

	changes := reg.Tracker.GetChangesByEntity(domain.TypeToken, "tok-1")
	require.Len(t, changes, 2)
	assert.Equal(t, changelog.ChangeCreate, changes[0].Type)
	assert.Equal(t, changelog.ChangeUpdate, changes[1].Type)
	assert.True(t, changes[1].HasOld)
}

func TestDurableTracking_PersistsThroughDataFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reg_test.tkdb")

	reg, err := New(WithDataFile(path))
	require.NoError(t, err)

	doc := domain.Document{"name": "primary", "type": "color", "value": "#ff0000", "description": "d"}
	entry, err := reg.Tracker.TrackChange(changelog.ChangeCreate, domain.TypeToken, "tok-1", doc)
	require.NoError(t, err)
	require.NoError(t, reg.Close())

	// A fresh registry over the same file sees the persisted ledger.
	revived, err := New(WithDataFile(path))
	require.NoError(t, err)
	defer revived.Close()

	history := revived.Tracker.GetChanges()
	require.Len(t, history, 1)
	assert.Equal(t, entry.ID, history[0].ID)
}

func TestSaveHandlerOverride(t *testing.T) {
	var saved []string
	handler := domain.SaveHandlerFunc(func(componentType, accessPattern string, payload domain.Document, opts map[string]interface{}) error {
		saved = append(saved, componentType)
		return nil
	})

	reg, err := New(WithSaveHandler(handler))
	require.NoError(t, err)
	defer reg.Close()

	doc := domain.Document{"name": "primary", "type": "color", "value": "#ff0000", "description": "d"}
	session := reg.Sessions.StartEditSession("token", domain.TypeToken, "tok-1", editsession.ModeEdit, doc)
	require.NoError(t, reg.Sessions.SaveSession(session.ID))

	assert.Equal(t, []string{"token"}, saved)
	_, exists := reg.Storage.Get("tokencore:data:token:tok-1")
	assert.False(t, exists, "default write-through handler must not run when overridden")
}

func TestWriteThroughHandler_RequiresEntityID(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)
	defer reg.Close()

	handler := reg.writeThroughHandler()
	err = handler.Save("token", "edit", domain.Document{"name": "x"}, map[string]interface{}{})
	require.Error(t, err)
}

func TestClose_IsSafeWithMemoryStore(t *testing.T) {
	reg, err := New()
	require.NoError(t, err)
	require.NoError(t, reg.Close())
}
