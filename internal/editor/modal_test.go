package editor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"selfid/internal/profile"
	dErrors "selfid/pkg/domain-errors"
)

type modalRecorder struct {
	saved    []profile.BasicProfile
	closes   []*profile.BasicProfile
	failures []error
}

func newRecordedModal(p profile.BasicProfile, save func(context.Context, profile.BasicProfile) error) (*Modal, *modalRecorder) {
	rec := &modalRecorder{}
	m := newModal(p, modalDeps{
		save: func(ctx context.Context, p profile.BasicProfile) error {
			if err := save(ctx, p); err != nil {
				return err
			}
			rec.saved = append(rec.saved, p)
			return nil
		},
		onClose: func(p *profile.BasicProfile) {
			rec.closes = append(rec.closes, p)
		},
		onFailure: func(_ context.Context, err error) {
			rec.failures = append(rec.failures, err)
		},
	})
	return m, rec
}

func saveOK(context.Context, profile.BasicProfile) error { return nil }

func TestSaveStatusMessages(t *testing.T) {
	assert.Equal(t, "", SavePending.Message())
	assert.Equal(t, "Saving profile...", SaveSaving.Message())
	assert.Equal(t, "Failed to save profile", SaveFailed.Message())
	assert.Equal(t, "Profile successfully saved!", SaveDone.Message())
}

func TestModalSetValue(t *testing.T) {
	m, _ := newRecordedModal(profile.BasicProfile{Name: profile.String("Bob")}, saveOK)

	err := m.SetValue(profile.FormValue{Emoji: profile.String("👻👻👻")})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	assert.Equal(t, "Bob", *m.Form().Name, "rejected form leaves the previous value")

	require.NoError(t, m.SetValue(profile.FormValue{Name: profile.String("Alice")}))
	assert.Equal(t, "Alice", *m.Form().Name)
	assert.Equal(t, "Bob", *m.Profile().Name)
}

func TestModalSubmitSuccess(t *testing.T) {
	original := profile.BasicProfile{Name: profile.String("Bob"), Nationalities: []string{"FR"}}
	m, rec := newRecordedModal(original, saveOK)

	form := m.Form()
	form.Nationality = profile.String("DE")
	require.NoError(t, m.SetValue(form))
	require.NoError(t, m.Submit(context.Background()))

	want := profile.BasicProfile{Name: profile.String("Bob"), Nationalities: []string{"DE", "FR"}}
	assert.Equal(t, []profile.BasicProfile{want}, rec.saved)
	require.Len(t, rec.closes, 1)
	assert.Equal(t, &want, rec.closes[0])
	assert.Equal(t, SaveDone, m.Status())
	assert.True(t, m.Closed())
	assert.Equal(t, []string{"FR"}, original.Nationalities)

	assert.ErrorIs(t, m.Submit(context.Background()), ErrModalClosed)
	assert.ErrorIs(t, m.Cancel(), ErrModalClosed)
}

func TestModalSubmitFailureThenRetry(t *testing.T) {
	fail := true
	m, rec := newRecordedModal(profile.BasicProfile{}, func(context.Context, profile.BasicProfile) error {
		if fail {
			return errors.New("index unavailable")
		}
		return nil
	})

	err := m.Submit(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index unavailable")
	assert.Equal(t, SaveFailed, m.Status())
	assert.Equal(t, "Failed to save profile", m.Status().Message())
	assert.False(t, m.Closed())
	assert.Empty(t, rec.closes)
	assert.Len(t, rec.failures, 1)

	fail = false
	require.NoError(t, m.Submit(context.Background()))
	assert.Equal(t, SaveDone, m.Status())
	assert.Len(t, rec.closes, 1)
}

func TestModalLockedWhileSaving(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	m, rec := newRecordedModal(profile.BasicProfile{}, func(context.Context, profile.BasicProfile) error {
		close(started)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() {
		done <- m.Submit(context.Background())
	}()
	<-started

	assert.Equal(t, SaveSaving, m.Status())
	assert.Equal(t, "Saving profile...", m.Status().Message())
	assert.ErrorIs(t, m.SetValue(profile.FormValue{Name: profile.String("x")}), ErrFormLocked)
	assert.ErrorIs(t, m.Cancel(), ErrFormLocked)
	assert.ErrorIs(t, m.Submit(context.Background()), ErrFormLocked)

	close(release)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("submit did not finish")
	}
	assert.Len(t, rec.saved, 1)
	assert.Equal(t, SaveDone, m.Status())
}

func TestModalCancel(t *testing.T) {
	m, rec := newRecordedModal(profile.BasicProfile{}, saveOK)

	require.NoError(t, m.Cancel())
	require.Len(t, rec.closes, 1)
	assert.Nil(t, rec.closes[0])
	assert.ErrorIs(t, m.SetValue(profile.FormValue{}), ErrModalClosed)
}
