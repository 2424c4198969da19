// go-kiss
// Copyright (c) 2026 The TNCware Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-kiss.
//
// go-kiss is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-kiss is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-kiss; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

//go:build windows

package uart

import (
	"context"
	"errors"
	"sort"
	"strings"
	"unsafe"

	"github.com/tncware/go-kiss/detection"
	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

const (
	digcfPresent      = 0x00000002
	spdrpHardwareID   = 0x00000001
	spdrpManufacturer = 0x0000000B
	spdrpFriendlyName = 0x0000000C
)

// getSerialPorts returns available COM ports on Windows, merging the
// SERIALCOMM registry listing with SetupAPI. SetupAPI entries win when
// both know a port because they carry USB descriptors; the registry
// still lists ports SetupAPI misses.
func getSerialPorts(_ context.Context) ([]serialPort, error) {
	registryPorts, registryErr := registryCOMPorts()
	setupPorts, setupErr := setupAPICOMPorts()

	if registryErr != nil && setupErr != nil {
		return nil, errors.Join(registryErr, setupErr)
	}

	portMap := make(map[string]serialPort)
	for _, port := range registryPorts {
		portMap[port.Path] = port
	}
	for _, port := range setupPorts {
		portMap[port.Path] = port
	}

	ports := make([]serialPort, 0, len(portMap))
	for _, port := range portMap {
		ports = append(ports, port)
	}

	// Map iteration order would shuffle the listing between runs.
	sort.Slice(ports, func(i, j int) bool { return ports[i].Path < ports[j].Path })

	return ports, nil
}

// registryCOMPorts lists COM ports from HARDWARE\DEVICEMAP\SERIALCOMM.
func registryCOMPorts() ([]serialPort, error) {
	key, err := registry.OpenKey(registry.LOCAL_MACHINE,
		`HARDWARE\DEVICEMAP\SERIALCOMM`, registry.QUERY_VALUE)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	values, err := key.ReadValueNames(-1)
	if err != nil {
		return nil, err
	}

	ports := make([]serialPort, 0, len(values))
	for _, value := range values {
		portName, _, err := key.GetStringValue(value)
		if err != nil {
			continue
		}
		ports = append(ports, serialPort{
			Path: portName,
			Name: portName,
		})
	}

	return ports, nil
}

// spDevinfoData mirrors the Win32 SP_DEVINFO_DATA structure.
type spDevinfoData struct {
	cbSize    uint32
	classGuid windows.GUID
	devInst   uint32
	reserved  uintptr
}

// setupAPICOMPorts enumerates the Ports device class through SetupAPI
// and extracts the COM path plus USB descriptors for each device.
func setupAPICOMPorts() ([]serialPort, error) {
	setupapi := windows.NewLazySystemDLL("setupapi.dll")
	getClassDevs := setupapi.NewProc("SetupDiGetClassDevsW")
	enumDeviceInfo := setupapi.NewProc("SetupDiEnumDeviceInfo")
	getDeviceProperty := setupapi.NewProc("SetupDiGetDeviceRegistryPropertyW")
	destroyDeviceInfoList := setupapi.NewProc("SetupDiDestroyDeviceInfoList")

	// Device class GUID for serial and parallel ports.
	guidPorts := windows.GUID{
		Data1: 0x4d36e978,
		Data2: 0xe325,
		Data3: 0x11ce,
		Data4: [8]byte{0xbf, 0xc1, 0x08, 0x00, 0x2b, 0xe1, 0x03, 0x18},
	}

	devInfo, _, _ := getClassDevs.Call(
		uintptr(unsafe.Pointer(&guidPorts)),
		0,
		0,
		digcfPresent,
	)
	if devInfo == uintptr(windows.InvalidHandle) {
		return nil, windows.GetLastError()
	}
	defer destroyDeviceInfoList.Call(devInfo)

	var ports []serialPort

	var devInfoData spDevinfoData
	devInfoData.cbSize = uint32(unsafe.Sizeof(devInfoData))

	for i := uint32(0); ; i++ {
		ret, _, _ := enumDeviceInfo.Call(
			devInfo,
			uintptr(i),
			uintptr(unsafe.Pointer(&devInfoData)),
		)
		if ret == 0 {
			break
		}

		name := deviceProperty(getDeviceProperty, devInfo, &devInfoData, spdrpFriendlyName)

		// Only devices whose friendly name carries a COM port are
		// serial ports; the class also contains LPT devices.
		comPort := comPortFromName(name)
		if comPort == "" {
			continue
		}

		port := serialPort{
			Path: comPort,
			Name: name,
		}

		// Hardware IDs look like "USB\VID_0403&PID_6015&REV_0600".
		if hwid := deviceProperty(getDeviceProperty, devInfo, &devInfoData, spdrpHardwareID); hwid != "" {
			port.VIDPID = detection.ParseVIDPID(hwid)
		}

		port.Manufacturer = deviceProperty(getDeviceProperty, devInfo, &devInfoData, spdrpManufacturer)

		// "USB Serial Port (COM7)" carries the product before the
		// parenthesized port.
		if n := strings.Index(name, " ("); n > 0 {
			port.Product = name[:n]
		}

		ports = append(ports, port)
	}

	return ports, nil
}

// deviceProperty reads one string property with the SetupAPI two-call
// pattern: the first call sizes the buffer, the second fills it.
func deviceProperty(getProperty *windows.LazyProc, devInfo uintptr, data *spDevinfoData, property uintptr) string {
	var requiredSize uint32
	_, _, _ = getProperty.Call(
		devInfo,
		uintptr(unsafe.Pointer(data)),
		property,
		0,
		0,
		0,
		uintptr(unsafe.Pointer(&requiredSize)),
	)
	if requiredSize == 0 {
		return ""
	}

	var propertyType uint32
	buf := make([]uint16, (requiredSize+1)/2)
	ret, _, _ := getProperty.Call(
		devInfo,
		uintptr(unsafe.Pointer(data)),
		property,
		uintptr(unsafe.Pointer(&propertyType)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(requiredSize),
		0,
	)
	if ret == 0 {
		return ""
	}

	return windows.UTF16ToString(buf)
}

// comPortFromName pulls "COM7" out of a friendly name like
// "USB Serial Port (COM7)".
func comPortFromName(name string) string {
	n := strings.LastIndex(name, "(COM")
	if n < 0 {
		return ""
	}
	m := strings.Index(name[n:], ")")
	if m < 0 {
		return ""
	}
	return name[n+1 : n+m]
}
