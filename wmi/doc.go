// Package wmi wraps Windows Management Instrumentation queries in scoped
// handles and lazy, batched result iteration.
//
// A typical program acquires the COM runtime for the calling goroutine,
// connects to a namespace and walks the records of a WQL query:
//
//	com, err := wmi.InitializeCOM(wmi.MultiThreaded)
//	if err != nil {
//		return err
//	}
//	defer com.Close()
//
//	s, err := wmi.Connect("cimv2")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//
//	rs, err := s.ExecuteQuery("SELECT Name, ProcessId FROM Win32_Process")
//	if err != nil {
//		return err
//	}
//	defer rs.Close()
//
//	for rec := range rs.All() {
//		name, _ := wmi.Property[string](rec, "Name")
//		pid, _ := wmi.Property[uint32](rec, "ProcessId")
//		fmt.Println(pid, name)
//	}
//
// Sessions, result sets and records share ownership of the native
// connection: the connection is released once the session and everything
// derived from it has been closed.
//
// Reading a property never fails hard. A missing property, a null value or
// a value that cannot be converted to the requested type yields false.
//
// The native COM driver is only available on Windows. Other platforms get a
// driver that fails with ErrNotSupported; tests plug in wmitest.Driver.
package wmi
