// Package softap provisions WiFi credentials on a device running a setup
// access point.
//
// A Client talks to the device over one of two interchangeable transports:
// a raw stream socket (port 5609) or HTTP (port 80). Every operation sends a
// single command and waits for exactly one result.
//
// Example usage:
//
//	config := softap.DefaultConfig()
//	client, err := softap.NewClient(config)
//	if err != nil {
//		return err
//	}
//
//	info, _ := client.DeviceInfo(ctx)
//	networks, _ := client.Scan(ctx)
//
//	// The device public key must be fetched before Configure.
//	if _, err := client.PublicKey(ctx); err != nil {
//		return err
//	}
//	err = client.Configure(ctx, softap.ConfigureOptions{
//		SSID:     "home",
//		Security: "wpa2_aes",
//		Password: "secret",
//	})
//	err = client.Connect(ctx, 0)
//
// # Security descriptors
//
// Security and EAP types are named by lower-case descriptors such as
// "wpa2_aes" or "eap-tls". SecurityValue, SecurityLookup and EAPTypeValue
// translate between names and the numeric codes the device understands.
// Numeric strings ("4194308", "0x00400004") are accepted wherever a name is.
//
// # Errors
//
// Validation failures wrap ErrValidation and are detected before any I/O.
// Transport failures wrap transport.ErrTransport or transport.ErrTimeout,
// and device rejections wrap wire.ErrNonZeroCode.
package softap
