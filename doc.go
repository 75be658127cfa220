// Package rubika is a client for the Rubika messenger's private web
// protocol.
//
// A Client owns one account, addressed by phone number. Its session is
// stored encrypted on disk and reused across runs, so Login only prompts
// for a code the first time.
//
// Basic usage:
//
//	client, err := rubika.New("+989123456789")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	if err := client.Login(ctx, prompter); err != nil {
//	    log.Fatal(err)
//	}
//
//	resp, err := client.Call(ctx, "getUserInfo", map[string]any{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(string(resp.Data.Raw()))
//
// Updates arrive through Subscribe and Listen:
//
//	client.Subscribe(func(ctx context.Context, update rubika.Value) {
//	    fmt.Println(string(update.Raw()))
//	}, nil)
//	err = client.Listen(ctx)
package rubika
