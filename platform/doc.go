// Package platform defines the contract between the launcher and an
// enforcement backend. The launcher hands a backend the policy, the policy
// reference directory and a few options; the backend narrows the privileges
// of the calling thread or reports exactly one SetupError kind.
//
// The Linux backend lives in the platform/linux sub-package.
package platform
