package sources_test

import (
	"context"
	"reflect"
	"testing"

	"metacat/internal/sources"
)

const odmlFixture = `<?xml version="1.0" encoding="UTF-8"?>
<odML version="1.1">
  <author>lab</author>
  <date>2023-05-11</date>
  <section>
    <name>Subject</name>
    <type>subject</type>
    <property>
      <name>Species</name>
      <value>Mus musculus</value>
      <type>string</type>
    </property>
    <property>
      <name>Weight</name>
      <value>24.5</value>
      <type>float</type>
      <unit>g</unit>
    </property>
    <section>
      <name>Health</name>
      <property>
        <name>Checked</name>
        <value>true</value>
        <type>boolean</type>
      </property>
    </section>
  </section>
  <section>
    <name>Recording</name>
    <property>
      <name>Channels</name>
      <value>[1,2,3]</value>
      <type>int</type>
    </property>
  </section>
</odML>
`

func TestOdmlParser_DocumentRoot(t *testing.T) {
	path := writeFile(t, "meta.odml", odmlFixture)

	parser, err := sources.ForExtension(".odml")
	if err != nil {
		t.Fatal(err)
	}
	docs, err := parser.Parse(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 1 {
		t.Fatalf("expected 1 doc, got %d", len(docs))
	}

	fields := flattenDoc(t, docs[0])

	if fields["Document.author"] != "lab" {
		t.Fatalf("author = %v", fields["Document.author"])
	}
	if fields["Document.sections.Subject.properties.Species.value"] != "Mus musculus" {
		t.Fatalf("species = %v", fields["Document.sections.Subject.properties.Species.value"])
	}
	if fields["Document.sections.Subject.properties.Weight.value"] != 24.5 {
		t.Fatalf("weight = %v (%T)", fields["Document.sections.Subject.properties.Weight.value"],
			fields["Document.sections.Subject.properties.Weight.value"])
	}
	if fields["Document.sections.Subject.properties.Weight.unit"] != "g" {
		t.Fatalf("unit = %v", fields["Document.sections.Subject.properties.Weight.unit"])
	}
	if fields["Document.sections.Subject.sections.Health.properties.Checked.value"] != true {
		t.Fatal("nested section property lost")
	}
}

func TestOdmlParser_MultiValuedProperty(t *testing.T) {
	path := writeFile(t, "meta.odml", odmlFixture)

	parser, _ := sources.ForExtension(".odml")
	docs, err := parser.Parse(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	fields := flattenDoc(t, docs[0])

	got := fields["Document.sections.Recording.properties.Channels.value"]
	want := []any{int64(1), int64(2), int64(3)}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("channels = %v (%T), want %v", got, got, want)
	}
}

func TestOdmlParser_MalformedFails(t *testing.T) {
	path := writeFile(t, "bad.odml", "<odML><section>")

	parser, _ := sources.ForExtension(".odml")
	if _, err := parser.Parse(context.Background(), path); err == nil {
		t.Fatal("expected parse error")
	}
}
