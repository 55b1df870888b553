// Copyright 2022 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package encoder

// encodeLeave encodes LEAVE: a single constant byte, 0xC9.
func encodeLeave(_ Instruction, _ RelocSink) ([]byte, error) {
	return []byte{0xC9}, nil
}

// encodeRet encodes RET (no operands): a single constant byte, 0xC3.
func encodeRet(_ Instruction, _ RelocSink) ([]byte, error) {
	return []byte{0xC3}, nil
}

// encodeRepMovsq encodes "REP MOVSQ": F3 48 A5, the only string-move form
// this core emits (used for struct-by-value copies).
func encodeRepMovsq(_ Instruction, _ RelocSink) ([]byte, error) {
	return []byte{0xF3, 0x48, 0xA5}, nil
}
