package auth

import (
	"fmt"
	"strings"
)

// ShowCookieExportGuide explains how to produce the cookie file that
// `igharvest auth import` and data.cookie_file expect
func ShowCookieExportGuide() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("📚 INSTAGRAM COOKIE EXPORT GUIDE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()

	fmt.Println("igharvest drives a real browser and reuses your logged-in session.")
	fmt.Println("It needs the cookies of that session as a JSON file.")
	fmt.Println()

	fmt.Println("🌐 STEP 1: Log in")
	fmt.Println("   - Go to https://www.instagram.com and log in")
	fmt.Println("   - Make sure you can see your feed")
	fmt.Println()

	fmt.Println("🍪 STEP 2: Export the cookies")
	fmt.Println("   METHOD A - Browser extension:")
	fmt.Println("   1. Install a cookie exporter that writes JSON (e.g. \"Cookie-Editor\")")
	fmt.Println("   2. Open it on instagram.com and choose Export → JSON")
	fmt.Println("   3. Save the result as cookies.json")
	fmt.Println()
	fmt.Println("   METHOD B - By hand:")
	fmt.Println("   1. F12 → Application (Chrome) or Storage (Firefox) → Cookies")
	fmt.Println("   2. Write a JSON array of {\"name\", \"value\", \"domain\"} objects")
	fmt.Println()

	fmt.Println("🔑 STEP 3: Check the export contains these cookies:")
	fmt.Println("   ┌─────────────┬──────────────────────────────────────────────┐")
	fmt.Println("   │ Cookie Name │ Needed for                                   │")
	fmt.Println("   ├─────────────┼──────────────────────────────────────────────┤")
	fmt.Println("   │ sessionid   │ the logged-in session (required)             │")
	fmt.Println("   │ csrftoken   │ page requests made by the site's scripts     │")
	fmt.Println("   │ ds_user_id  │ the account the session belongs to           │")
	fmt.Println("   └─────────────┴──────────────────────────────────────────────┘")
	fmt.Println()

	fmt.Println("📥 STEP 4: Hand them to igharvest")
	fmt.Println("   igharvest auth import cookies.json --account <name>")
	fmt.Println("   or set data.cookie_file in the config")
	fmt.Println()

	fmt.Println("⚠️  SECURITY WARNING:")
	fmt.Println("   • These cookies give FULL access to your Instagram account")
	fmt.Println("   • NEVER share them with anyone")
	fmt.Println("   • Imported cookies are kept in the system keychain or an encrypted file")
	fmt.Println()
	fmt.Println(strings.Repeat("=", 80))
	fmt.Println()
}
