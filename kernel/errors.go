// Copyright 2026 flatwave Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package kernel

import "fmt"

// Error is a fatal lowering or invariant failure. It names the pass that
// detected it so the driver can report where compilation died. "Cannot
// lower this way" is never an Error; those cases resolve through fallbacks.
type Error struct {
	Pass string
	Msg  string
}

func (e *Error) Error() string {
	return e.Pass + ": " + e.Msg
}

// Errorf builds a pass-tagged fatal error.
func Errorf(pass, format string, args ...any) *Error {
	return &Error{Pass: pass, Msg: fmt.Sprintf(format, args...)}
}
