package beautify_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"impractical.co/hbs/beautify"
)

func ExampleHTML() {
	out, err := beautify.HTML(`<html><head><title>Hi</title></head><body><p>Hello <b>World</b></p><pre>  keep
  this</pre><br></body></html>`)
	if err != nil {
		panic(err)
	}
	fmt.Println(out)

	//Output:
	// <html>
	//   <head>
	//     <title>
	//       Hi
	//     </title>
	//   </head>
	//   <body>
	//     <p>
	//       Hello
	//       <b>
	//         World
	//       </b>
	//     </p>
	//     <pre>  keep
	//   this</pre>
	//     <br>
	//   </body>
	// </html>
}

func TestHTML(t *testing.T) {
	t.Parallel()

	cases := map[string]struct {
		input string
		want  string
	}{
		"empty": {
			input: "",
			want:  "",
		},
		"whitespace-only-text": {
			input: "<div>\n   \n</div>",
			want:  "<div>\n</div>",
		},
		"script-kept": {
			input: "<div><script>if (a < b) { go(); }</script></div>",
			want:  "<div>\n  <script>if (a < b) { go(); }</script>\n</div>",
		},
		"comment-and-doctype": {
			input: "<!DOCTYPE html><!-- hi --><p>x</p>",
			want:  "<!DOCTYPE html>\n<!-- hi -->\n<p>\n  x\n</p>",
		},
		"void-elements": {
			input: "<p><img src=\"a.png\"><input name=\"q\"></p>",
			want:  "<p>\n  <img src=\"a.png\">\n  <input name=\"q\">\n</p>",
		},
		"stray-end-tag": {
			input: "</div><p>x</p>",
			want:  "</div>\n<p>\n  x\n</p>",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			got, err := beautify.HTML(tc.input)
			if err != nil {
				t.Fatalf("unexpected error: %s", err)
			}
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("unexpected output (-wanted, +got): %s", diff)
			}
		})
	}
}
