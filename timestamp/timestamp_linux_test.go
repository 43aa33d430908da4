/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package timestamp

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func reverse(s []byte) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func Test_byteToTime(t *testing.T) {
	timeb := []byte{63, 155, 21, 96, 0, 0, 0, 0, 52, 156, 191, 42, 0, 0, 0, 0}
	res, err := byteToTime(timeb)
	require.NoError(t, err)
	require.Equal(t, int64(1612028735717200436), res.UnixNano())
}

func Test_scmDataToTime_prefersSoftwareOverZeroedHardware(t *testing.T) {
	data := make([]byte, 48)
	copy(data[0:16], []byte{63, 155, 21, 96, 0, 0, 0, 0, 52, 156, 191, 42, 0, 0, 0, 0})
	ts, err := scmDataToTime(data)
	require.NoError(t, err)
	require.Equal(t, int64(1612028735717200436), ts.UnixNano())
}

func Test_scmDataToTime_allZeroIsAnError(t *testing.T) {
	data := make([]byte, 48)
	_, err := scmDataToTime(data)
	require.Error(t, err)
}

func TestEnableSWTimestampsRx(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: 0})
	require.NoError(t, err)
	defer conn.Close()

	sc, err := conn.SyscallConn()
	require.NoError(t, err)
	var fd int
	require.NoError(t, sc.Control(func(f uintptr) { fd = int(f) }))

	err = EnableSWTimestampsRx(fd)
	require.NoError(t, err)
}

func TestSocketControlMessageTimestampNoTimestamp(t *testing.T) {
	_, err := socketControlMessageTimestamp(make([]byte, unix.CmsgSpace(0)), 0)
	require.ErrorIs(t, err, errNoTimestamp)
}
