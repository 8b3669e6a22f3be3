package lifecycle

import (
	"fmt"
	"strings"
)

// RequestDevice is the device name passed to the attach API call. How the
// guest actually exposes the volume depends on the instance generation; see
// DevicePath.
const RequestDevice = "/dev/sdh"

// Instance families still on the Xen hypervisor, where the requested device
// name survives into the guest. Everything newer is Nitro and renames EBS
// attachments to NVMe namespaces.
var xenFamilies = map[string]bool{
	"c1": true, "c3": true, "c4": true,
	"d2": true, "f1": true, "g2": true, "g3": true,
	"h1": true, "hs1": true, "i2": true, "i3": true,
	"m1": true, "m2": true, "m3": true, "m4": true,
	"p2": true, "p3": true, "r3": true, "r4": true,
	"t1": true, "t2": true, "x1": true, "x1e": true,
}

// DevicePath returns the device node under which an attached data volume
// appears inside the guest. A pure function of the instance type family.
func DevicePath(instanceType string) string {
	family := instanceType
	if i := strings.IndexByte(instanceType, '.'); i >= 0 {
		family = instanceType[:i]
	}
	if xenFamilies[family] {
		return "/dev/xvdh"
	}
	return "/dev/nvme1n1"
}

// MountInstructions renders the post-attach commands handed back to the
// owner. First use formats the volume; a re-attach must only mount, so
// existing data is never offered a format command.
func MountInstructions(device string, firstUse bool) string {
	if firstUse {
		return fmt.Sprintf(
			"The volume is new, so format it before the first mount:\n"+
				"sudo mkfs -L ebs_volume -t ext4 %s\n"+
				"sudo mkdir -p /mnt/ebs\n"+
				"sudo mount %s /mnt/ebs", device, device)
	}
	return fmt.Sprintf(
		"Mount the volume:\n"+
			"sudo mkdir -p /mnt/ebs\n"+
			"sudo mount %s /mnt/ebs", device)
}
