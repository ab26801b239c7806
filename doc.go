// Package modlog is a logging backend with hot-reloadable filtering and
// rotating file output. It decides per record whether it is significant
// enough to keep, renders it, and writes it to one or more local
// destinations. Its filtering policy can be swapped while the process
// runs, either programmatically or by an operator editing a specfile,
// without restarting or losing records.
//
// Key pieces
//   - LogSpecification: default level, module-path directives
//     (longest-prefix wins, later entries override at equal specificity),
//     optional message filter and duplication threshold
//   - Registry: the active specification behind an atomic swap point;
//     readers are wait-free and never observe a torn value
//   - SpecWatcher: fsnotify-driven hot reload of the specfile with
//     debouncing and bounded backoff; a corrupt save changes nothing
//   - RotatingFileSink: size/day rotation with indexed rotated names,
//     retention pruning and a self-healing degraded mode
//   - Duplication sink: an independently thresholded secondary stream
//
// Typical usage
//
//	svc := modlog.NewService(modlog.Config{
//		BaseSpec: "info,server.db=debug",
//		SpecFile: "/etc/myapp/logspec.yaml",
//		Rotation: modlog.RotationPolicy{
//			Directory: "/var/log/myapp",
//			BaseName:  "server",
//			MaxBytes:  10 << 20,
//			Retention: 7,
//		},
//	})
//	if err := svc.Initialize(); err != nil { panic(err) }
//	defer svc.Close()
//
//	svc.Log(modlog.LevelInfo, "server.http", "listening on :8080")
package modlog
