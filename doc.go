// Package sandboxexec launches a program inside a sandbox.
//
// A launch takes a resolved sandbox policy, the directory the policy is
// relative to, and a command line. The launcher applies the policy to the
// calling thread (and, where the kernel primitive allows it, to every
// thread of the process) and then replaces the process image with the
// command. Any failure in either step aborts the launch: there is no retry
// and no unsandboxed fallback.
//
// Run must be called from the main goroutine before the program starts
// goroutines of its own. On success it never returns.
//
// Basic usage:
//
//	p, err := policy.Parse(`{"mode":"read-only"}`)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	inv, err := sandboxexec.NewInvocation(p, "/work", false, []string{"ls", "-la"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = sandboxexec.New().Run(inv)
//	// Only reached on failure.
//	log.Fatal(err)
package sandboxexec
