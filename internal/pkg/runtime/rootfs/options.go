// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package rootfs

import (
	"strings"

	"golang.org/x/sys/unix"
)

// MountFlags is a bitset of the mount(2) MS_* flags this parser recognizes.
type MountFlags uintptr

const (
	FlagRDONLY      MountFlags = unix.MS_RDONLY
	FlagNOSUID      MountFlags = unix.MS_NOSUID
	FlagNODEV       MountFlags = unix.MS_NODEV
	FlagNOEXEC      MountFlags = unix.MS_NOEXEC
	FlagSYNC        MountFlags = unix.MS_SYNCHRONOUS
	FlagREMOUNT     MountFlags = unix.MS_REMOUNT
	FlagBIND        MountFlags = unix.MS_BIND
	FlagREC         MountFlags = unix.MS_REC
	FlagPRIVATE     MountFlags = unix.MS_PRIVATE
	FlagSHARED      MountFlags = unix.MS_SHARED
	FlagSLAVE       MountFlags = unix.MS_SLAVE
	FlagRELATIME    MountFlags = unix.MS_RELATIME
	FlagNOATIME     MountFlags = unix.MS_NOATIME
	FlagSTRICTATIME MountFlags = unix.MS_STRICTATIME

	// nonBindFlagMask is the set of bind/propagation flags that do not call
	// for a follow-up remount. When bind-mounting, mount_into_container
	// remounts only if a flag outside this mask is requested, because the
	// kernel ignores such flags on the initial bind(2) call.
	nonBindFlagMask = FlagREC | FlagREMOUNT | FlagBIND | FlagPRIVATE | FlagSHARED | FlagSLAVE
)

// RecursiveAttr captures the recursive mount-attribute tokens (e.g.
// "ridonly", "rnosuid") accumulated separately from flags, per spec.
type RecursiveAttr struct {
	// Set are the AttrSet bits, Clear the AttrClr bits, as consumed by
	// mount_setattr(2).
	Set   uint64
	Clear uint64
}

// IsZero reports whether no recursive attribute token was seen.
func (r *RecursiveAttr) IsZero() bool {
	return r == nil || (r.Set == 0 && r.Clear == 0)
}

// MountOptionConfig is the parsed result of an OCI mount's option list.
type MountOptionConfig struct {
	Flags   MountFlags
	Data    string
	RecAttr *RecursiveAttr
}

// mountOptionFlags maps a plain option token to the flag it sets. An empty
// value means the token is accepted but contributes no bits (e.g. "rw" is
// simply the absence of RDONLY).
var mountOptionFlags = map[string]MountFlags{
	"defaults":    0,
	"ro":          FlagRDONLY,
	"rw":          0,
	"suid":        0,
	"nosuid":      FlagNOSUID,
	"dev":         0,
	"nodev":       FlagNODEV,
	"exec":        0,
	"noexec":      FlagNOEXEC,
	"sync":        FlagSYNC,
	"async":       0,
	"remount":     FlagREMOUNT,
	"bind":        FlagBIND,
	"rbind":       FlagBIND | FlagREC,
	"private":     FlagPRIVATE,
	"rprivate":    FlagPRIVATE | FlagREC,
	"shared":      FlagSHARED,
	"rshared":     FlagSHARED | FlagREC,
	"slave":       FlagSLAVE,
	"rslave":      FlagSLAVE | FlagREC,
	"unbindable":  0,
	"runbindable": FlagREC,
	"relatime":    FlagRELATIME,
	"norelatime":  0,
	"noatime":     FlagNOATIME,
	"strictatime": FlagSTRICTATIME,
}

// recursiveAttrTokens maps a "r<flag>" token to the mount_setattr(2)
// attribute bit it should set, per the kernel's mount_attr flags.
var recursiveAttrTokens = map[string]uint64{
	"ridonly":      unix.MOUNT_ATTR_RDONLY,
	"rnosuid":      unix.MOUNT_ATTR_NOSUID,
	"rnodev":       unix.MOUNT_ATTR_NODEV,
	"rnoexec":      unix.MOUNT_ATTR_NOEXEC,
	"rnosymfollow": unix.MOUNT_ATTR_NOSYMFOLLOW,
	"rnoatime":     unix.MOUNT_ATTR_NOATIME,
	"rstrictatime": unix.MOUNT_ATTR_STRICTATIME,
	"rrelatime":    unix.MOUNT_ATTR_RELATIME,
	"rnodiratime":  unix.MOUNT_ATTR_NODIRATIME,
}

// ParseMountOptions translates an OCI mount's option strings into a
// MountOptionConfig. It never fails: unrecognized tokens are passed through
// verbatim, comma-joined, in their original order, because filesystems such
// as devpts interpret that order positionally.
func ParseMountOptions(options []string) MountOptionConfig {
	cfg := MountOptionConfig{}
	var data []string

	for _, opt := range options {
		if attr, ok := recursiveAttrTokens[opt]; ok {
			if cfg.RecAttr == nil {
				cfg.RecAttr = &RecursiveAttr{}
			}
			cfg.RecAttr.Set |= attr
			continue
		}
		if flag, ok := mountOptionFlags[opt]; ok {
			cfg.Flags |= flag
			continue
		}
		data = append(data, opt)
	}

	cfg.Data = strings.Join(data, ",")
	return cfg
}
