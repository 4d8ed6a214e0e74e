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

package supervisor

import (
	"encoding/binary"

	"github.com/zeroos-project/zeroos/core/kernel"
)

// mailboxHeaderLen is the fixed-size region at the front of a process's
// shared-memory mailbox: Num, the 4 argument words, a data length, and a
// cap-slot count. Everything after it is the variable-length data buffer
// followed by the cap-slot array, each a uint32.
const mailboxHeaderLen = 4 + 4*4 + 4 + 4

// mailboxResultHeaderLen is the fixed-size region the supervisor writes
// back: the result code (int64) and a response-data length.
const mailboxResultHeaderLen = 8 + 4

// DecodeRequest reads a pending syscall out of a guest's mailbox buffer.
// The layout is the WASM platform's wire ABI: three i32 argument
// registers would be too narrow for SendCap's cap-slot list, so the
// mailbox instead carries the full 4-word Args array plus a trailing
// variable-length region, the same shape hardware's trap handler
// populates from its own registers.
func DecodeRequest(buf []byte) (kernel.Syscall, bool) {
	if len(buf) < mailboxHeaderLen {
		return kernel.Syscall{}, false
	}
	var sc kernel.Syscall
	sc.Num = binary.LittleEndian.Uint32(buf[0:4])
	for i := 0; i < 4; i++ {
		sc.Args[i] = binary.LittleEndian.Uint32(buf[4+4*i : 8+4*i])
	}
	dataLen := binary.LittleEndian.Uint32(buf[20:24])
	capCount := binary.LittleEndian.Uint32(buf[24:28])

	rest := buf[mailboxHeaderLen:]
	if uint32(len(rest)) < dataLen+4*capCount {
		return kernel.Syscall{}, false
	}
	if dataLen > 0 {
		sc.Data = append([]byte(nil), rest[:dataLen]...)
	}
	rest = rest[dataLen:]
	if capCount > 0 {
		sc.Caps = make([]uint32, capCount)
		for i := uint32(0); i < capCount; i++ {
			sc.Caps[i] = binary.LittleEndian.Uint32(rest[4*i : 4*i+4])
		}
	}
	return sc, true
}

// EncodeResult writes a kernel.Result back into the response region of a
// guest's mailbox buffer, returning the number of bytes written.
func EncodeResult(buf []byte, res kernel.Result) int {
	need := mailboxResultHeaderLen + len(res.Data)
	if len(buf) < need {
		return 0
	}
	binary.LittleEndian.PutUint64(buf[0:8], uint64(res.Code))
	binary.LittleEndian.PutUint32(buf[8:12], uint32(len(res.Data)))
	copy(buf[mailboxResultHeaderLen:], res.Data)
	return need
}
