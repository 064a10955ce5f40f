package policy

import (
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// ParseXML decodes an XML policy document of the form
//
//	<ValidationPolicy Name="..." Model="SHELL">
//	  <Description>...</Description>
//	  <RevocationFreshness>24h</RevocationFreshness>
//	  <Context Name="SIGNATURE">
//	    <Constraint Name="signing-time" Level="FAIL"/>
//	    <SigningCertificate>
//	      <Constraint Name="key-usage" Level="WARN"><Value>nonRepudiation</Value></Constraint>
//	    </SigningCertificate>
//	    <CACertificate>...</CACertificate>
//	  </Context>
//	  <Cryptographic Level="FAIL">
//	    <AcceptableDigestAlgorithm>SHA256</AcceptableDigestAlgorithm>
//	    <AcceptableEncryptionAlgorithm>RSA</AcceptableEncryptionAlgorithm>
//	    <MinimumKeySize Algorithm="RSA">2048</MinimumKeySize>
//	    <Expiration Algorithm="SHA1" Date="2012-08-01"/>
//	    <Context Name="TIMESTAMP" Level="FAIL">...</Context>
//	  </Cryptographic>
//	</ValidationPolicy>
func ParseXML(data []byte) (*Policy, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, newPolicyError("", err, "failed to parse XML: %v", err)
	}
	root := doc.SelectElement("ValidationPolicy")
	if root == nil {
		return nil, newPolicyError("", nil, "missing ValidationPolicy root element")
	}

	d := &document{
		Name:     root.SelectAttrValue("Name", ""),
		Model:    Model(root.SelectAttrValue("Model", "")),
		Contexts: make(map[Context]*ContextConstraints),
	}
	if e := root.SelectElement("Description"); e != nil {
		d.Description = strings.TrimSpace(e.Text())
	}
	if e := root.SelectElement("RevocationFreshness"); e != nil {
		d.RevocationFreshness = strings.TrimSpace(e.Text())
	}

	for _, ce := range root.SelectElements("Context") {
		name := Context(ce.SelectAttrValue("Name", ""))
		c := &ContextConstraints{}
		field := "Context." + string(name)
		if err := readConstraints(field, ce, c.levels(), c.valueLevels()); err != nil {
			return nil, err
		}
		if e := ce.SelectElement("SigningCertificate"); e != nil {
			if err := readConstraints(field+".SigningCertificate", e, c.SigningCertificate.levels(), c.SigningCertificate.valueLevels()); err != nil {
				return nil, err
			}
		}
		if e := ce.SelectElement("CACertificate"); e != nil {
			if err := readConstraints(field+".CACertificate", e, c.CACertificate.levels(), c.CACertificate.valueLevels()); err != nil {
				return nil, err
			}
		}
		d.Contexts[name] = c
	}

	if ce := root.SelectElement("Cryptographic"); ce != nil {
		cd, err := readCrypto(ce)
		if err != nil {
			return nil, err
		}
		for _, sub := range ce.SelectElements("Context") {
			scd, err := readCrypto(sub)
			if err != nil {
				return nil, err
			}
			if cd.Contexts == nil {
				cd.Contexts = make(map[Context]cryptoDocument)
			}
			cd.Contexts[Context(sub.SelectAttrValue("Name", ""))] = scd
		}
		d.Cryptographic = cd
	}
	return build(d)
}

func readConstraints(field string, parent *etree.Element, levels map[string]*Level, values map[string]*LevelValues) error {
	for _, e := range parent.SelectElements("Constraint") {
		name := e.SelectAttrValue("Name", "")
		level := Level(e.SelectAttrValue("Level", ""))
		if l, ok := levels[name]; ok {
			*l = level
			continue
		}
		if lv, ok := values[name]; ok {
			lv.Level = level
			for _, v := range e.SelectElements("Value") {
				lv.Values = append(lv.Values, strings.TrimSpace(v.Text()))
			}
			continue
		}
		return newPolicyError(field+"."+name, ErrUnknownCheck, "unknown constraint %q", name)
	}
	return nil
}

func readCrypto(e *etree.Element) (cryptoDocument, error) {
	cd := cryptoDocument{
		Level:           Level(e.SelectAttrValue("Level", "")),
		MinimumKeySizes: make(map[string]int),
	}
	for _, a := range e.SelectElements("AcceptableDigestAlgorithm") {
		cd.AcceptableDigests = append(cd.AcceptableDigests, strings.TrimSpace(a.Text()))
	}
	for _, a := range e.SelectElements("AcceptableEncryptionAlgorithm") {
		cd.AcceptableEncryption = append(cd.AcceptableEncryption, strings.TrimSpace(a.Text()))
	}
	for _, m := range e.SelectElements("MinimumKeySize") {
		alg := m.SelectAttrValue("Algorithm", "")
		n, err := strconv.Atoi(strings.TrimSpace(m.Text()))
		if err != nil {
			return cd, newPolicyError("Cryptographic.MinimumKeySize", err, "invalid key size for %s", alg)
		}
		cd.MinimumKeySizes[alg] = n
	}
	for _, x := range e.SelectElements("Expiration") {
		exp := expirationDocument{
			Algorithm: x.SelectAttrValue("Algorithm", ""),
			Date:      x.SelectAttrValue("Date", ""),
		}
		if ks := x.SelectAttrValue("KeySize", ""); ks != "" {
			n, err := strconv.Atoi(ks)
			if err != nil {
				return cd, newPolicyError("Cryptographic.Expiration", err, "invalid key size %q", ks)
			}
			exp.KeySize = n
		}
		cd.Expirations = append(cd.Expirations, exp)
	}
	return cd, nil
}

// MarshalXMLDocument renders the policy in the format read by ParseXML.
func (p *Policy) MarshalXMLDocument() ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("ValidationPolicy")
	root.CreateAttr("Name", p.name)
	root.CreateAttr("Model", string(p.model))
	if p.description != "" {
		root.CreateElement("Description").SetText(p.description)
	}
	if p.revocationFreshness > 0 {
		root.CreateElement("RevocationFreshness").SetText(p.revocationFreshness.String())
	}
	for _, ctx := range Contexts {
		c, ok := p.contexts[ctx]
		if !ok {
			continue
		}
		ce := root.CreateElement("Context")
		ce.CreateAttr("Name", string(ctx))
		writeConstraints(ce, c.levels(), c.valueLevels())
		writeConstraints(ce.CreateElement("SigningCertificate"), c.SigningCertificate.levels(), c.SigningCertificate.valueLevels())
		writeConstraints(ce.CreateElement("CACertificate"), c.CACertificate.levels(), c.CACertificate.valueLevels())
	}
	if p.defaultCrypto != nil {
		ce := root.CreateElement("Cryptographic")
		writeCrypto(ce, p.defaultCrypto)
		for _, ctx := range Contexts {
			if c, ok := p.crypto[ctx]; ok {
				sub := ce.CreateElement("Context")
				sub.CreateAttr("Name", string(ctx))
				writeCrypto(sub, c)
			}
		}
	}
	doc.Indent(2)
	return doc.WriteToBytes()
}

func writeConstraints(parent *etree.Element, levels map[string]*Level, values map[string]*LevelValues) {
	for _, name := range sortedKeys(levels) {
		if l := *levels[name]; l != "" {
			e := parent.CreateElement("Constraint")
			e.CreateAttr("Name", name)
			e.CreateAttr("Level", string(l))
		}
	}
	for _, name := range sortedKeys(values) {
		lv := values[name]
		if lv.Level == "" {
			continue
		}
		e := parent.CreateElement("Constraint")
		e.CreateAttr("Name", name)
		e.CreateAttr("Level", string(lv.Level))
		for _, v := range lv.Values {
			e.CreateElement("Value").SetText(v)
		}
	}
}

func writeCrypto(e *etree.Element, c *Crypto) {
	e.CreateAttr("Level", string(c.level))
	for _, d := range sortedKeys(c.digests) {
		e.CreateElement("AcceptableDigestAlgorithm").SetText(d)
	}
	for _, a := range sortedKeys(c.encryptions) {
		e.CreateElement("AcceptableEncryptionAlgorithm").SetText(a)
	}
	for _, a := range sortedKeys(c.minKeySizes) {
		m := e.CreateElement("MinimumKeySize")
		m.CreateAttr("Algorithm", a)
		m.SetText(strconv.Itoa(c.minKeySizes[a]))
	}
	for _, a := range sortedKeys(c.expirations) {
		for _, x := range c.expirations[a] {
			xe := e.CreateElement("Expiration")
			xe.CreateAttr("Algorithm", a)
			if x.KeySize > 0 {
				xe.CreateAttr("KeySize", strconv.Itoa(x.KeySize))
			}
			xe.CreateAttr("Date", x.Date.Format(DateLayout))
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
