/*
   Copyright The Zero OS Authors.

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

package init

import "encoding/binary"

// Message tags. 0x1000-0x100F is the service registry namespace (service
// process to Init); 0x2000-0x200F is the transport spawn-request namespace
// (bootstrap transport to Init). Tag values are part of the wire ABI and
// fixed once assigned.
const (
	TagRegisterService uint32 = 0x1000
	TagServiceReady    uint32 = 0x1001
	TagLookupService   uint32 = 0x1002
	TagLookupResponse  uint32 = 0x1003

	TagSpawnProcess      uint32 = 0x2000
	TagSpawnResponse     uint32 = 0x2001
	TagCreateEndpointFor uint32 = 0x2002
	TagEndpointResponse  uint32 = 0x2003
	TagGrantCap          uint32 = 0x2004
	TagCapResponse       uint32 = 0x2005
)

// RegisterService is sent by a newly spawned service process once it has
// created its own listening endpoint: {name, endpoint_id}.
type RegisterService struct {
	Name       string
	EndpointID uint64
}

func (m RegisterService) Encode() []byte {
	b := make([]byte, 8+len(m.Name))
	binary.LittleEndian.PutUint64(b[0:8], m.EndpointID)
	copy(b[8:], m.Name)
	return b
}

func DecodeRegisterService(data []byte) (RegisterService, bool) {
	if len(data) < 8 {
		return RegisterService{}, false
	}
	return RegisterService{EndpointID: binary.LittleEndian.Uint64(data[0:8]), Name: string(data[8:])}, true
}

// ServiceReady carries no payload: it marks the sender's most recent
// RegisterService as live and ready to serve lookups.
type ServiceReady struct{}

// LookupService asks Init to resolve a well-known service name to an
// endpoint id.
type LookupService struct {
	Name string
}

func (m LookupService) Encode() []byte { return []byte(m.Name) }

func DecodeLookupService(data []byte) LookupService {
	return LookupService{Name: string(data)}
}

// LookupResponse answers LookupService.
type LookupResponse struct {
	Found      bool
	EndpointID uint64
}

func (m LookupResponse) Encode() []byte {
	b := make([]byte, 9)
	if m.Found {
		b[0] = 1
	}
	binary.LittleEndian.PutUint64(b[1:9], m.EndpointID)
	return b
}

func DecodeLookupResponse(data []byte) (LookupResponse, bool) {
	if len(data) < 9 {
		return LookupResponse{}, false
	}
	return LookupResponse{Found: data[0] != 0, EndpointID: binary.LittleEndian.Uint64(data[1:9])}, true
}

// SpawnProcess is the transport-originated "please spawn me a process
// running name" request.
type SpawnProcess struct {
	Name string
}

func (m SpawnProcess) Encode() []byte { return []byte(m.Name) }

func DecodeSpawnProcess(data []byte) SpawnProcess {
	return SpawnProcess{Name: string(data)}
}

// SpawnResponse answers SpawnProcess.
type SpawnResponse struct {
	OK  bool
	PID uint64
}

func (m SpawnResponse) Encode() []byte {
	b := make([]byte, 9)
	if m.OK {
		b[0] = 1
	}
	binary.LittleEndian.PutUint64(b[1:9], m.PID)
	return b
}

func DecodeSpawnResponse(data []byte) (SpawnResponse, bool) {
	if len(data) < 9 {
		return SpawnResponse{}, false
	}
	return SpawnResponse{OK: data[0] != 0, PID: binary.LittleEndian.Uint64(data[1:9])}, true
}

// CreateEndpointForRequest asks Init to create an endpoint owned by pid on
// the caller's behalf.
type CreateEndpointForRequest struct {
	PID uint64
}

func (m CreateEndpointForRequest) Encode() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, m.PID)
	return b
}

func DecodeCreateEndpointForRequest(data []byte) (CreateEndpointForRequest, bool) {
	if len(data) < 8 {
		return CreateEndpointForRequest{}, false
	}
	return CreateEndpointForRequest{PID: binary.LittleEndian.Uint64(data[0:8])}, true
}

// EndpointResponse answers CreateEndpointForRequest.
type EndpointResponse struct {
	OK         bool
	EndpointID uint64
	Slot       uint32
}

func (m EndpointResponse) Encode() []byte {
	b := make([]byte, 13)
	if m.OK {
		b[0] = 1
	}
	binary.LittleEndian.PutUint64(b[1:9], m.EndpointID)
	binary.LittleEndian.PutUint32(b[9:13], m.Slot)
	return b
}

func DecodeEndpointResponse(data []byte) (EndpointResponse, bool) {
	if len(data) < 13 {
		return EndpointResponse{}, false
	}
	return EndpointResponse{
		OK:         data[0] != 0,
		EndpointID: binary.LittleEndian.Uint64(data[1:9]),
		Slot:       binary.LittleEndian.Uint32(data[9:13]),
	}, true
}

// GrantCapRequest asks Init to grant a capability on its behalf.
type GrantCapRequest struct {
	FromPID  uint64
	FromSlot uint32
	ToPID    uint64
	Perms    uint8
}

func (m GrantCapRequest) Encode() []byte {
	b := make([]byte, 21)
	binary.LittleEndian.PutUint64(b[0:8], m.FromPID)
	binary.LittleEndian.PutUint32(b[8:12], m.FromSlot)
	binary.LittleEndian.PutUint64(b[12:20], m.ToPID)
	b[20] = m.Perms
	return b
}

func DecodeGrantCapRequest(data []byte) (GrantCapRequest, bool) {
	if len(data) < 21 {
		return GrantCapRequest{}, false
	}
	return GrantCapRequest{
		FromPID:  binary.LittleEndian.Uint64(data[0:8]),
		FromSlot: binary.LittleEndian.Uint32(data[8:12]),
		ToPID:    binary.LittleEndian.Uint64(data[12:20]),
		Perms:    data[20],
	}, true
}

// CapResponse answers GrantCapRequest.
type CapResponse struct {
	OK      bool
	NewSlot uint32
}

func (m CapResponse) Encode() []byte {
	b := make([]byte, 5)
	if m.OK {
		b[0] = 1
	}
	binary.LittleEndian.PutUint32(b[1:5], m.NewSlot)
	return b
}

func DecodeCapResponse(data []byte) (CapResponse, bool) {
	if len(data) < 5 {
		return CapResponse{}, false
	}
	return CapResponse{OK: data[0] != 0, NewSlot: binary.LittleEndian.Uint32(data[1:5])}, true
}
