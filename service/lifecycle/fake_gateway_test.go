package lifecycle

import (
	"context"
	"fmt"
	"sync"

	"github.com/elC0mpa/ec2-concierge/model"
)

// fakeGateway is an in-memory CloudGateway double. Calls are counted per
// method and failures can be injected per method name.
type fakeGateway struct {
	mu    sync.Mutex
	calls map[string]int

	// failures[method] is consumed one error per call, transient or not.
	failures map[string][]error

	instances []model.InstanceSnapshot
	volumes   []model.VolumeSnapshot
	keyPairs  map[string]string
	efsUIDs   map[model.User]string

	nextInstanceID string
	nextVolumeID   string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		calls:          make(map[string]int),
		failures:       make(map[string][]error),
		keyPairs:       make(map[string]string),
		efsUIDs:        make(map[model.User]string),
		nextInstanceID: "i-0abc",
		nextVolumeID:   "vol-0abc",
	}
}

func (f *fakeGateway) failWith(method string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[method] = append(f.failures[method], errs...)
}

func (f *fakeGateway) callCount(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// enter counts the call and pops an injected failure if one is queued.
func (f *fakeGateway) enter(method string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[method]++
	if queue := f.failures[method]; len(queue) > 0 {
		err := queue[0]
		f.failures[method] = queue[1:]
		return err
	}
	return nil
}

func transientErr(op string) error {
	return &model.CloudError{Op: op, Code: "RequestLimitExceeded", Transient: true, Err: fmt.Errorf("throttled")}
}

func permanentErr(op string) error {
	return &model.CloudError{Op: op, Code: "UnauthorizedOperation", Transient: false, Err: fmt.Errorf("denied")}
}

func (f *fakeGateway) ListInstances(ctx context.Context, filter model.InstanceFilter) ([]model.InstanceSnapshot, error) {
	if err := f.enter("ListInstances"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.InstanceSnapshot, len(f.instances))
	copy(out, f.instances)
	return out, nil
}

func (f *fakeGateway) CreateInstance(ctx context.Context, spec model.LaunchSpec) (string, error) {
	if err := f.enter("CreateInstance"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextInstanceID, nil
}

func (f *fakeGateway) TerminateInstance(ctx context.Context, instanceID string) error {
	return f.enter("TerminateInstance")
}

func (f *fakeGateway) StartInstance(ctx context.Context, instanceID string) error {
	return f.enter("StartInstance")
}

func (f *fakeGateway) StopInstance(ctx context.Context, instanceID string) error {
	return f.enter("StopInstance")
}

func (f *fakeGateway) ModifyInstanceType(ctx context.Context, instanceID, instanceType string) error {
	return f.enter("ModifyInstanceType")
}

func (f *fakeGateway) ListVolumes(ctx context.Context, filter model.VolumeFilter) ([]model.VolumeSnapshot, error) {
	if err := f.enter("ListVolumes"); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.VolumeSnapshot, len(f.volumes))
	copy(out, f.volumes)
	return out, nil
}

func (f *fakeGateway) CreateVolume(ctx context.Context, spec model.VolumeSpec) (string, error) {
	if err := f.enter("CreateVolume"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nextVolumeID, nil
}

func (f *fakeGateway) AttachVolume(ctx context.Context, volumeID, instanceID, device string) error {
	return f.enter("AttachVolume")
}

func (f *fakeGateway) DetachVolume(ctx context.Context, volumeID string) error {
	return f.enter("DetachVolume")
}

func (f *fakeGateway) ResizeVolume(ctx context.Context, volumeID string, sizeGiB int32) error {
	return f.enter("ResizeVolume")
}

func (f *fakeGateway) DeleteVolume(ctx context.Context, volumeID string) error {
	return f.enter("DeleteVolume")
}

func (f *fakeGateway) ImportKeyPair(ctx context.Context, keyName, publicKey string) error {
	if err := f.enter("ImportKeyPair"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keyPairs[keyName] = publicKey
	return nil
}

func (f *fakeGateway) DeleteKeyPair(ctx context.Context, keyName string) error {
	if err := f.enter("DeleteKeyPair"); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.keyPairs, keyName)
	return nil
}

func (f *fakeGateway) HasKeyPair(ctx context.Context, keyName string) (bool, error) {
	if err := f.enter("HasKeyPair"); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.keyPairs[keyName]
	return ok, nil
}

func (f *fakeGateway) HomeEFSUid(ctx context.Context, user model.User) (string, error) {
	if err := f.enter("HomeEFSUid"); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.efsUIDs[user], nil
}
