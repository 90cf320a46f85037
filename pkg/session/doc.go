// Package session creates browser sessions and tracks which worker owns
// each one.
//
// # Architecture
//
// The package is built around three concepts:
//
// 1. Session: one playwright browser context and page owned by one worker
// 2. Factory: launches local browsers or connects to a remote provider
// 3. Registry: maps each worker id to its single bound session
//
// # Session Lifecycle
//
// A worker runs one test at a time and follows this lifecycle per test:
//
//  1. Create: Factory.Create launches or connects a session
//  2. Bind: Registry.Bind attaches it to the worker
//  3. Use: the actuator drives the session's page
//  4. Release: Registry.Release quits the session and unbinds it, on every
//     exit path, including when quit fails
//
// # Local and Remote Targets
//
// Local sessions run in a persistent playwright context on a fresh profile
// directory named after the worker, so parallel workers never share browser
// state. The directory is removed on quit.
//
// Remote sessions connect to the BrowserStack or LambdaTest playwright
// endpoint. Credentials are looked up in the environment (exact name, then
// case-insensitive) and then in process properties:
//
//   - BROWSERSTACK_USERNAME / browserstack.username
//   - BROWSERSTACK_ACCESS_KEY / browserstack.accessKey
//   - LAMBDATEST_USERNAME / lambdatest.username
//   - LAMBDATEST_ACCESS_KEY / lambdatest.accessKey
//
// # Example Usage
//
//	factory := session.NewFactory(session.FactoryOptions{Browsers: cfg.Browsers})
//	registry := session.NewRegistry()
//
//	s, err := factory.Create(ctx, "worker-1", session.TargetFromConfig(cfg, "LoginTest.testValidLogin", build))
//	if err != nil {
//	    return err // *session.ProvisioningError
//	}
//	if err := registry.Bind("worker-1", s); err != nil {
//	    return err
//	}
//	defer registry.Release("worker-1")
package session
