package registry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/elC0mpa/ec2-concierge/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// listGateway implements just enough of the gateway to drive Rebuild.
type listGateway struct {
	instances []model.InstanceSnapshot
	volumes   []model.VolumeSnapshot
}

func (g *listGateway) ListInstances(ctx context.Context, filter model.InstanceFilter) ([]model.InstanceSnapshot, error) {
	return g.instances, nil
}

func (g *listGateway) ListVolumes(ctx context.Context, filter model.VolumeFilter) ([]model.VolumeSnapshot, error) {
	return g.volumes, nil
}

func (g *listGateway) CreateInstance(ctx context.Context, spec model.LaunchSpec) (string, error) {
	return "", nil
}
func (g *listGateway) TerminateInstance(ctx context.Context, instanceID string) error { return nil }
func (g *listGateway) StartInstance(ctx context.Context, instanceID string) error     { return nil }
func (g *listGateway) StopInstance(ctx context.Context, instanceID string) error      { return nil }
func (g *listGateway) ModifyInstanceType(ctx context.Context, instanceID, instanceType string) error {
	return nil
}
func (g *listGateway) CreateVolume(ctx context.Context, spec model.VolumeSpec) (string, error) {
	return "", nil
}
func (g *listGateway) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	return nil
}
func (g *listGateway) DetachVolume(ctx context.Context, volumeID string) error { return nil }
func (g *listGateway) ResizeVolume(ctx context.Context, volumeID string, sizeGiB int32) error {
	return nil
}
func (g *listGateway) DeleteVolume(ctx context.Context, volumeID string) error { return nil }
func (g *listGateway) ImportKeyPair(ctx context.Context, keyName, publicKey string) error {
	return nil
}
func (g *listGateway) DeleteKeyPair(ctx context.Context, keyName string) error { return nil }
func (g *listGateway) HasKeyPair(ctx context.Context, keyName string) (bool, error) {
	return false, nil
}
func (g *listGateway) HomeEFSUid(ctx context.Context, user model.User) (string, error) {
	return "", nil
}

// TestRecordVolume_OnePerUser verifies the single-volume invariant.
func TestRecordVolume_OnePerUser(t *testing.T) {
	reg := NewService()

	require.NoError(t, reg.RecordVolume(&model.VolumeRecord{
		VolumeID: "vol-1", Owner: "alice", State: model.VolumeStateAvailable,
	}))

	err := reg.RecordVolume(&model.VolumeRecord{
		VolumeID: "vol-2", Owner: "alice", State: model.VolumeStateCreating,
	})
	require.ErrorIs(t, err, model.ErrResourceConflict)

	// A different user is unaffected, and re-recording the same volume is
	// not a conflict.
	require.NoError(t, reg.RecordVolume(&model.VolumeRecord{
		VolumeID: "vol-3", Owner: "bob", State: model.VolumeStateAvailable,
	}))
	require.NoError(t, reg.RecordVolume(&model.VolumeRecord{
		VolumeID: "vol-1", Owner: "alice", State: model.VolumeStateInUse,
	}))
}

func TestRecordVolume_DeletedFreesTheSlot(t *testing.T) {
	reg := NewService()

	require.NoError(t, reg.RecordVolume(&model.VolumeRecord{
		VolumeID: "vol-1", Owner: "alice", State: model.VolumeStateDeleted,
	}))
	require.NoError(t, reg.RecordVolume(&model.VolumeRecord{
		VolumeID: "vol-2", Owner: "alice", State: model.VolumeStateCreating,
	}))
}

func TestVolumeOf_SkipsDeleted(t *testing.T) {
	reg := NewService()
	require.NoError(t, reg.RecordVolume(&model.VolumeRecord{
		VolumeID: "vol-1", Owner: "alice", State: model.VolumeStateDeleted,
	}))

	_, ok := reg.VolumeOf("alice")
	assert.False(t, ok)
}

func TestLookupOwner(t *testing.T) {
	reg := NewService()
	reg.RecordInstance(&model.InstanceRecord{InstanceID: "i-1", Owner: "alice"})
	require.NoError(t, reg.RecordVolume(&model.VolumeRecord{
		VolumeID: "vol-1", Owner: "bob", State: model.VolumeStateAvailable,
	}))

	owner, ok := reg.LookupOwner("i-1")
	require.True(t, ok)
	assert.Equal(t, model.User("alice"), owner)

	owner, ok = reg.LookupOwner("vol-1")
	require.True(t, ok)
	assert.Equal(t, model.User("bob"), owner)

	_, ok = reg.LookupOwner("i-unknown")
	assert.False(t, ok)
}

// TestRebuild_FromTags verifies the registry converges to tagged cloud state
// after a cold start: untagged and terminal resources are skipped, everything
// else is keyed by its ownership tag.
func TestRebuild_FromTags(t *testing.T) {
	launch := time.Now().Add(-3 * time.Hour)
	gateway := &listGateway{
		instances: []model.InstanceSnapshot{
			{
				InstanceID:   "i-1",
				InstanceType: "t3.micro",
				State:        model.InstanceStateRunning,
				LaunchTime:   launch,
				Tags:         map[string]string{model.OwnerTagKey: "alice"},
			},
			{
				InstanceID: "i-terminated",
				State:      model.InstanceStateTerminated,
				Tags:       map[string]string{model.OwnerTagKey: "alice"},
			},
			{
				InstanceID: "i-untagged",
				State:      model.InstanceStateRunning,
				Tags:       map[string]string{},
			},
		},
		volumes: []model.VolumeSnapshot{
			{
				VolumeID:   "vol-1",
				SizeGiB:    100,
				State:      model.VolumeStateInUse,
				AttachedTo: "i-1",
				Tags:       map[string]string{model.OwnerTagKey: "alice"},
			},
		},
	}

	reg := NewService()
	// Pre-existing state must be dropped entirely.
	reg.RecordInstance(&model.InstanceRecord{InstanceID: "i-stale", Owner: "ghost"})

	require.NoError(t, reg.Rebuild(context.Background(), gateway))

	assert.Len(t, reg.AllInstances(), 1)
	rec, ok := reg.Instance("i-1")
	require.True(t, ok)
	assert.Equal(t, model.User("alice"), rec.Owner)
	assert.Equal(t, launch, rec.RunningSince, "running period anchors to cloud launch time")

	_, ok = reg.Instance("i-stale")
	assert.False(t, ok)

	vol, ok := reg.Volume("vol-1")
	require.True(t, ok)
	assert.Equal(t, model.User("alice"), vol.Owner)
	assert.Equal(t, "i-1", vol.AttachedInstance)
	assert.True(t, vol.EverAttached, "rediscovered volumes must never be offered a format command")
}

// TestLockResource_Serializes verifies two holders of the same key exclude
// each other while different keys proceed in parallel.
func TestLockResource_Serializes(t *testing.T) {
	reg := NewService()

	var counter int
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := reg.LockResource("i-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)

	// Disjoint keys must not block each other.
	unlockA := reg.LockResource("i-a")
	done := make(chan struct{})
	go func() {
		unlockB := reg.LockResource("i-b")
		unlockB()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("independent resource locks blocked each other")
	}
	unlockA()
}
