// Package toolexec runs external packaging tools as blocking subprocesses
// with captured output. Failures surface as *ToolError, which matches
// build.ErrToolInvocationFailure under errors.Is.
package toolexec
