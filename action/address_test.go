package action

import "testing"

func TestParseAddress_FullDanishAddress(t *testing.T) {
	addr := ParseAddress("Jonas Berg, Vesterbrogade 86, 1. tv, 1620, København, Denmark")
	if addr == nil {
		t.Fatal("expected an address")
	}
	if addr.Name != "Jonas Berg" {
		t.Errorf("name = %q", addr.Name)
	}
	if addr.Address1 != "Vesterbrogade 86" {
		t.Errorf("address1 = %q", addr.Address1)
	}
	if addr.Address2 != "1. tv" {
		t.Errorf("address2 = %q", addr.Address2)
	}
	if addr.Zip != "1620" {
		t.Errorf("zip = %q", addr.Zip)
	}
	if addr.City != "København" {
		t.Errorf("city = %q", addr.City)
	}
	if addr.Country != "Denmark" {
		t.Errorf("country = %q", addr.Country)
	}
}

func TestParseAddress_BoilerplatePrefixAndCombinedZipCity(t *testing.T) {
	addr := ParseAddress("Please change the shipping address to Vesterbrogade 86, 1620 København, Denmark.")
	if addr == nil {
		t.Fatal("expected an address")
	}
	if addr.Address1 != "Vesterbrogade 86" {
		t.Errorf("address1 = %q", addr.Address1)
	}
	if addr.Zip != "1620" || addr.City != "København" {
		t.Errorf("zip/city = %q / %q", addr.Zip, addr.City)
	}
	if addr.Country != "Denmark" {
		t.Errorf("country = %q", addr.Country)
	}
}

func TestParseAddress_NoStreetOrZip(t *testing.T) {
	if addr := ParseAddress("somewhere nicer please"); addr != nil {
		t.Fatalf("expected nil, got %+v", addr)
	}
}

func TestParseAddress_Empty(t *testing.T) {
	if addr := ParseAddress("   "); addr != nil {
		t.Fatalf("expected nil, got %+v", addr)
	}
}

func TestParseAddress_StreetOnly(t *testing.T) {
	addr := ParseAddress("ship to: Baker Street 221b")
	if addr == nil {
		t.Fatal("expected an address")
	}
	if addr.Address1 != "Baker Street 221b" {
		t.Errorf("address1 = %q", addr.Address1)
	}
	if addr.Name != "" {
		t.Errorf("name = %q", addr.Name)
	}
}

func TestParseAddress_DigitFreeProse(t *testing.T) {
	cases := []string{
		"please change the address to something nicer, thanks",
		"the usual place",
		"my house, near the bakery, around the corner",
	}
	for _, text := range cases {
		if addr := ParseAddress(text); addr != nil {
			t.Errorf("ParseAddress(%q) = %+v, expected nil", text, addr)
		}
	}
}
