package wallet

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "askme/pkg/domain-errors"
)

func TestChallengeMessage(t *testing.T) {
	msg := ChallengeMessage("alice.eth")
	assert.Equal(t, "Verify ENS ownership: alice.eth\n\nThis signature proves you own the ENS name.", msg)
}

func TestLocalWallet(t *testing.T) {
	ctx := context.Background()

	t.Run("sign before connect fails", func(t *testing.T) {
		w, err := NewLocalWallet()
		require.NoError(t, err)

		_, err = w.SignMessage(ctx, "hello")
		require.ErrorIs(t, err, ErrNotConnected)
	})

	t.Run("connect yields a checksummed address", func(t *testing.T) {
		w, err := NewLocalWallet()
		require.NoError(t, err)

		addr, err := w.Connect(ctx)
		require.NoError(t, err)
		assert.Len(t, addr, 42)
		assert.Equal(t, "0x", addr[:2])
		assert.Equal(t, addr, w.Address())
	})

	t.Run("signature is 65 bytes hex", func(t *testing.T) {
		w, err := NewLocalWallet()
		require.NoError(t, err)
		_, err = w.Connect(ctx)
		require.NoError(t, err)

		sig, err := w.SignMessage(ctx, ChallengeMessage("alice.eth"))
		require.NoError(t, err)
		assert.Len(t, sig, 2+65*2)
	})

	t.Run("disconnect clears the address", func(t *testing.T) {
		w, err := NewLocalWallet()
		require.NoError(t, err)
		_, err = w.Connect(ctx)
		require.NoError(t, err)

		require.NoError(t, w.Disconnect(ctx))
		assert.Empty(t, w.Address())
	})
}

// slowWallet blocks in SignMessage until released, to exercise the guard.
type slowWallet struct {
	release chan struct{}
}

func (s *slowWallet) Connect(context.Context) (string, error) { return "0xabc", nil }
func (s *slowWallet) Disconnect(context.Context) error        { return nil }
func (s *slowWallet) Address() string                         { return "0xabc" }

func (s *slowWallet) SignMessage(context.Context, string) (string, error) {
	<-s.release
	return "0xsig", nil
}

func TestGuardRejectsConcurrentSign(t *testing.T) {
	slow := &slowWallet{release: make(chan struct{})}
	guard := NewGuard(slow)

	var wg sync.WaitGroup
	wg.Add(1)

	firstStarted := make(chan struct{})
	go func() {
		defer wg.Done()
		close(firstStarted)
		sig, err := guard.SignMessage(context.Background(), "m1")
		require.NoError(t, err)
		assert.Equal(t, "0xsig", sig)
	}()

	<-firstStarted
	// Give the goroutine a moment to enter the guarded section.
	time.Sleep(10 * time.Millisecond)

	_, err := guard.SignMessage(context.Background(), "m2")
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeConflict))

	close(slow.release)
	wg.Wait()

	// Guard is reusable once the in-flight sign completes.
	_, err = guard.SignMessage(context.Background(), "m3")
	require.NoError(t, err)
}
