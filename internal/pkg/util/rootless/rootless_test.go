// Copyright (c) Contributors to the corerun project.
// This software is licensed under a 3-clause BSD license. Please consult the
// LICENSE.md file distributed with the sources of this project regarding your
// rights to use or distribute this software.

package rootless

import (
	"os"
	"os/user"
	"reflect"
	"testing"

	"github.com/moby/sys/userns"
)

func TestGetuid(t *testing.T) {
	currUID := os.Geteuid()

	tests := []struct {
		name    string
		setEnv  bool
		envVal  string
		wantUID int
		wantErr bool
	}{
		{name: "unset", wantUID: currUID},
		{name: "empty", setEnv: true, envVal: "", wantUID: currUID},
		{name: "valid", setEnv: true, envVal: "123", wantUID: 123},
		{name: "invalid", setEnv: true, envVal: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				os.Setenv(UIDEnv, tt.envVal)
				defer os.Unsetenv(UIDEnv)
			}
			gotUID, err := Getuid()
			if (err != nil) != tt.wantErr {
				t.Errorf("Getuid() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && gotUID != tt.wantUID {
				t.Errorf("Getuid() = %v, want %v", gotUID, tt.wantUID)
			}
		})
	}
}

func TestGetgid(t *testing.T) {
	currGID := os.Getegid()

	tests := []struct {
		name    string
		setEnv  bool
		envVal  string
		wantGID int
		wantErr bool
	}{
		{name: "unset", wantGID: currGID},
		{name: "empty", setEnv: true, envVal: "", wantGID: currGID},
		{name: "valid", setEnv: true, envVal: "456", wantGID: 456},
		{name: "invalid", setEnv: true, envVal: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				os.Setenv(GIDEnv, tt.envVal)
				defer os.Unsetenv(GIDEnv)
			}
			gotGID, err := Getgid()
			if (err != nil) != tt.wantErr {
				t.Errorf("Getgid() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && gotGID != tt.wantGID {
				t.Errorf("Getgid() = %v, want %v", gotGID, tt.wantGID)
			}
		})
	}
}

func TestGetUser(t *testing.T) {
	currentUser, err := user.Current()
	if err != nil {
		t.Fatal(err)
	}
	rootUser, err := user.LookupId("0")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		setEnv  bool
		envVal  string
		want    *user.User
		wantErr bool
	}{
		{name: "unset", want: currentUser},
		{name: "empty", setEnv: true, envVal: "", want: currentUser},
		{name: "valid", setEnv: true, envVal: "0", want: rootUser},
		{name: "invalid", setEnv: true, envVal: "abc", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				os.Setenv(UIDEnv, tt.envVal)
				defer os.Unsetenv(UIDEnv)
			}
			got, err := GetUser()
			if (err != nil) != tt.wantErr {
				t.Errorf("GetUser() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if err == nil && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("GetUser() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInNS(t *testing.T) {
	os.Unsetenv(NSEnv)
	if InNS() {
		t.Errorf("InNS() = true without %s set", NSEnv)
	}
	os.Setenv(NSEnv, "TRUE")
	defer os.Unsetenv(NSEnv)
	if !InNS() {
		t.Errorf("InNS() = false with %s set", NSEnv)
	}
}

func TestIsRootless(t *testing.T) {
	// IsRootless also reports true when the test binary itself happens to
	// be running inside a user namespace, regardless of the uid seen there.
	inUserNS := userns.RunningInUserNS()

	os.Setenv(UIDEnv, "0")
	defer os.Unsetenv(UIDEnv)
	rootless, err := IsRootless()
	if err != nil {
		t.Fatal(err)
	}
	if rootless != inUserNS {
		t.Errorf("IsRootless() = %v for uid 0, want %v", rootless, inUserNS)
	}

	os.Setenv(UIDEnv, "1000")
	rootless, err = IsRootless()
	if err != nil {
		t.Fatal(err)
	}
	if !rootless {
		t.Errorf("IsRootless() = false for uid 1000")
	}
}
