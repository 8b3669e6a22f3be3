package lifecycle

import (
	"fmt"
	"strings"

	"github.com/elC0mpa/ec2-concierge/model"
)

// User-data assembly. The launch script is the concatenation of a base
// block, an optional home-directory mount block (EFS or EBS), and the AMI's
// startup script plus whatever the user supplied, run as the AMI login user.

const baseScript = `#!/bin/bash
set -v

USER=%s
HOME=/home/$USER

# Alias sudo to run commands directly if sudo is not available
if ! command -v sudo &> /dev/null; then
    alias sudo=''
fi

# Set soft open file limit to hard limit for all users
LIMIT=$(ulimit -H -n)
echo "* soft nofile $LIMIT" | sudo tee -a /etc/security/limits.conf > /dev/null
echo "root soft nofile $LIMIT" | sudo tee -a /etc/security/limits.conf > /dev/null
`

const efsScript = `# Install NFS client
if command -v apt-get &> /dev/null; then
    sudo apt-get update
    sudo DEBIAN_FRONTEND=noninteractive apt-get install nfs-common bindfs -y
elif command -v yum &> /dev/null; then
    sudo yum install -y nfs-utils bindfs
elif command -v zypper &> /dev/null; then
    sudo zypper install -y nfs-client bindfs
else
    echo "Unsupported package manager. Please install nfs client and bindfs manually."
    exit 1
fi

# Save authorized_key
read -r authorized_key < $HOME/.ssh/authorized_keys

# Mount the EFS file system
sudo groupmod -g 1001 users
sudo usermod -u %s -g users $USER
echo "%s:/%s $HOME nfs4 rw,relatime,vers=4.1,rsize=1048576,wsize=1048576,namlen=255,hard,noresvport,proto=tcp,timeo=600,retrans=2,sec=sys,clientaddr=127.0.0.1,local_lock=none,addr=127.0.0.1 0 0" | sudo tee -a /etc/fstab
sudo mount $HOME

# Restore authorized_key
sudo mkdir -p $HOME/.ssh
sudo touch $HOME/.ssh/authorized_keys
sudo chmod 600 $HOME/.ssh/authorized_keys
if ! grep -Fxq "$authorized_key" $HOME/.ssh/authorized_keys; then
    echo "$authorized_key" >> $HOME/.ssh/authorized_keys
fi
sudo chown -R $USER:users $HOME/.ssh
`

const efsRootScript = `sudo bash -c "cat > /etc/systemd/system/mount-root.service <<EOF
[Unit]
Description=Bind ${HOME} to /root
Requires=home-${USER}.mount
After=home-${USER}.mount

[Service]
ExecStart=/usr/bin/bindfs -o map=${USER}/root,nonempty ${HOME} /root
ExecStop=/bin/umount /root
RemainAfterExit=yes
LimitNOFILE=${LIMIT}

[Install]
WantedBy=multi-user.target
EOF"
sudo systemctl daemon-reload
sudo systemctl enable mount-root.service
sudo systemctl start mount-root.service
`

const ebsScript = `if [ -e /dev/xvdh ]; then
    device=/dev/xvdh
elif [ -e /dev/nvme2n1 ]; then
    device=/dev/nvme2n1
else
    device=/dev/nvme1n1
fi

# Format the EBS volume if necessary
if ! sudo file -s $device | grep -q "filesystem"; then
    sudo mkfs -L ebs_volume -t ext4 $device
    sudo mount $device /mnt
    sudo rsync -aXv $HOME/ /mnt/
    sudo umount /mnt
fi

# Save authorized_key
read -r authorized_key < $HOME/.ssh/authorized_keys

# Mount the EBS volume
echo "LABEL=ebs_volume $HOME ext4 defaults,nofail 0 2" | sudo tee -a /etc/fstab
sudo mount $HOME

# Restore authorized_key
sudo mkdir -p $HOME/.ssh
sudo touch $HOME/.ssh/authorized_keys
sudo chmod 600 $HOME/.ssh/authorized_keys
if ! grep -Fxq "$authorized_key" $HOME/.ssh/authorized_keys; then
    echo "$authorized_key" >> $HOME/.ssh/authorized_keys
fi
sudo chown -R $USER:$USER $HOME/.ssh
`

const startupWrapper = `cd $HOME
sudo su $USER -c 'bash -s' <<'UNLIKELY_STRING'
%s
UNLIKELY_STRING
`

// buildUserData assembles the launch script. efsUID is only consulted for
// the EFS mount options; startupScript may be empty.
func buildUserData(amiUser string, mount model.MountOption, efsIP, efsUID, startupScript string) string {
	var b strings.Builder
	fmt.Fprintf(&b, baseScript, amiUser)

	switch mount {
	case model.MountEFS, model.MountEFSRoot:
		fmt.Fprintf(&b, efsScript, efsUID, efsIP, efsUID)
		if mount == model.MountEFSRoot {
			b.WriteString(efsRootScript)
		}
	case model.MountEBS:
		b.WriteString(ebsScript)
	}

	if startupScript != "" {
		fmt.Fprintf(&b, startupWrapper, startupScript)
	}

	return b.String()
}
